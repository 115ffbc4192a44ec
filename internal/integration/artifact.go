package integration

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

// Argv artifacts keep the exact compiler invocation of every captured
// translation unit so analysis can re-derive include paths and defines
// without re-running the build. Vectors are NUL-joined and LZ4
// block-compressed behind a little-endian uint32 length header.

// artifactSuffix names per-translation-unit argv artifacts.
const artifactSuffix = ".argv.lz4"

// artifactHashLen is the number of hex digits of the source path hash used
// as the artifact name.
const artifactHashLen = 16

// lenHeaderSize is the size of the uncompressed-length header.
const lenHeaderSize = 4

// ArtifactName returns the artifact file name for a source path.
func ArtifactName(sourcePath string) string {
	sum := sha256.Sum256([]byte(sourcePath))

	return hex.EncodeToString(sum[:])[:artifactHashLen] + artifactSuffix
}

// WriteArgvArtifact stores the argument vector for sourcePath under tuDir
// and returns the artifact path. Re-capturing the same translation unit
// overwrites its artifact.
func WriteArgvArtifact(tuDir, sourcePath string, argv []string) (string, error) {
	if err := os.MkdirAll(tuDir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}

	raw := []byte(joinArgv(argv))

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil {
		return "", fmt.Errorf("compress argv: %w", err)
	}

	// Incompressible vectors come back with written == 0; store them raw
	// with a zero header so the reader can tell the encodings apart.
	payload := compressed[:written]
	rawLen := uint32(len(raw))

	if written == 0 {
		payload = raw
		rawLen = 0
	}

	buf := new(bytes.Buffer)
	buf.Grow(lenHeaderSize + len(payload))

	if err := binary.Write(buf, binary.LittleEndian, rawLen); err != nil {
		return "", fmt.Errorf("encode argv header: %w", err)
	}

	buf.Write(payload)

	path := filepath.Join(tuDir, ArtifactName(sourcePath))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write argv artifact: %w", err)
	}

	return path, nil
}

// ReadArgvArtifact loads an argument vector written by WriteArgvArtifact.
func ReadArgvArtifact(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read argv artifact: %w", err)
	}

	if len(data) < lenHeaderSize {
		return nil, fmt.Errorf("argv artifact %s: truncated header", path)
	}

	rawLen := binary.LittleEndian.Uint32(data[:lenHeaderSize])
	payload := data[lenHeaderSize:]

	if rawLen == 0 {
		return splitArgv(string(payload)), nil
	}

	raw := make([]byte, rawLen)

	n, err := lz4.UncompressBlock(payload, raw)
	if err != nil {
		return nil, fmt.Errorf("decompress argv artifact %s: %w", path, err)
	}

	return splitArgv(string(raw[:n])), nil
}

func joinArgv(argv []string) string {
	joined := ""
	for i, arg := range argv {
		if i > 0 {
			joined += "\x00"
		}

		joined += arg
	}

	return joined
}

func splitArgv(joined string) []string {
	if joined == "" {
		return nil
	}

	var (
		argv  []string
		start int
	)

	for i := 0; i < len(joined); i++ {
		if joined[i] == 0 {
			argv = append(argv, joined[start:i])
			start = i + 1
		}
	}

	return append(argv, joined[start:])
}
