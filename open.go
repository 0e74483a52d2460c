package assetdb

import (
	"path/filepath"
	"strings"
)

const (
	GLTF = "gltf"
	GLB  = "glb"
	FBX  = "fbx"
	OBJ  = "obj"
)

// FormatOpen reads a source file and builds a document from it.
type FormatOpen func(path string, opts Options, sink *DiagSink) (*Document, error)

func FormatFactory(format string) FormatOpen {
	switch format {
	case GLTF, GLB:
		return OpenGLTFFile
	case FBX:
		return OpenFBXFile
	case OBJ:
		return OpenOBJFile
	}
	return nil
}

// OpenFile dispatches on the file extension.
func OpenFile(path string, opts Options, sink *DiagSink) (*Document, error) {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	open := FormatFactory(format)
	if open == nil {
		return nil, &UnsupportedError{Kind: "format", Detail: format}
	}
	return open(path, opts, sink)
}
