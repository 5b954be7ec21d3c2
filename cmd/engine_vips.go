//go:build cgo && !novips

package cmd

import (
	"go.uber.org/zap"

	"jpegfit/internal/codec"
	"jpegfit/internal/codec/vipscodec"
)

func openVips(logger *zap.Logger, threads int) (codec.Engine, func(), error) {
	if err := vipscodec.Init(logger, threads); err != nil {
		return nil, func() {}, err
	}
	return vipscodec.NewEngine(), vipscodec.Shutdown, nil
}
