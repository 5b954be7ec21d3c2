package imgutil

import (
	"path/filepath"
	"strings"
)

var rasterExtensions = []string{".tif", ".tiff", ".jpg", ".jpeg", ".png"}

var rawExtensions = []string{
	".3fr", ".ari", ".arw", ".bay", ".crw", ".cr2", ".cap",
	".dcs", ".dcr", ".dng", ".drf", ".eip", ".erf", ".fff",
	".gpr", ".iiq", ".k25", ".kdc", ".mdc", ".mef", ".mos",
	".mrw", ".nef", ".nrw", ".obm", ".orf", ".pef", ".ptx",
	".pxn", ".r3d", ".raf", ".raw", ".rwl", ".rw2", ".rwz",
	".sr2", ".srf", ".srw", ".x3f",
}

var extKinds = buildExtKinds()

func buildExtKinds() map[string]Kind {
	m := make(map[string]Kind, len(rasterExtensions)+len(rawExtensions))
	m[".tif"] = KindTIFF
	m[".tiff"] = KindTIFF
	m[".jpg"] = KindJPEG
	m[".jpeg"] = KindJPEG
	m[".png"] = KindPNG
	for _, ext := range rawExtensions {
		m[ext] = KindRaw
	}
	return m
}

// Extensions returns the accepted file extensions, lower case with the
// leading dot, raster formats first.
func Extensions() []string {
	out := make([]string, 0, len(rasterExtensions)+len(rawExtensions))
	out = append(out, rasterExtensions...)
	return append(out, rawExtensions...)
}

// IsSupportedExt reports whether ext (with or without dot, any case) is on
// the allow-list.
func IsSupportedExt(ext string) bool {
	return KindForExt(ext) != KindUnknown
}

// KindForExt maps an extension to the kind its files nominally contain.
func KindForExt(ext string) Kind {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return extKinds[ext]
}

// KindForPath is KindForExt applied to the extension of path.
func KindForPath(path string) Kind {
	return KindForExt(filepath.Ext(path))
}
