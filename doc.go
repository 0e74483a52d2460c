// Package assetdb normalizes parsed 3D scene descriptions into a flat,
// stably-indexed asset database: objects, meshes, materials, textures,
// images, animations and skins, each addressable by a dense integer id
// and an optional name.
//
// Front ends (glTF, FBX, OBJ) turn a format-specific document into a
// RawScene; Open runs the normalization stages over it and produces an
// immutable Document. The engine never touches raw file bytes itself.
package assetdb
