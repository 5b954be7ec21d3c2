//go:build !cgo || novips

package cmd

import (
	"errors"

	"go.uber.org/zap"

	"jpegfit/internal/codec"
)

var errNoVips = errors.New("libvips support not built in (needs cgo and no novips tag)")

func openVips(*zap.Logger, int) (codec.Engine, func(), error) {
	return nil, func() {}, errNoVips
}
