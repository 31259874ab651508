package ml

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Format selects the artifact decoder.
type Format string

const (
	FormatAuto     Format = "auto"
	FormatBundle   Format = "bundle"
	FormatXGBoost  Format = "xgboost"
	FormatLightGBM Format = "lightgbm"
)

// MaxArtifactSize bounds the decompressed size of a model file.
const MaxArtifactSize = 256 << 20

// ErrUnknownFormat is an artifact whose format cannot be determined. It is a
// kind of ErrArtifactCorrupt.
var ErrUnknownFormat = fmt.Errorf("%w: unknown model format", ErrArtifactCorrupt)

// ParseFormat parses a configured format name. The empty string means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatBundle, FormatXGBoost, FormatLightGBM:
		return f, nil
	default:
		return "", fmt.Errorf("unknown model format %q (expected auto, bundle, xgboost or lightgbm)", s)
	}
}

func (f Format) String() string {
	return string(f)
}

// formatFromPath infers the decoder from the file extension, ignoring a
// trailing .gz/.gzip.
func formatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(trimCompressionExt(path))) {
	case ".json", ".msgpack", ".mpk":
		return FormatBundle, true
	case ".model", ".bin", ".xgb":
		return FormatXGBoost, true
	case ".txt":
		return FormatLightGBM, true
	default:
		return "", false
	}
}

func isCompressed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".gz" || ext == ".gzip"
}

func isMsgpack(path string) bool {
	ext := strings.ToLower(filepath.Ext(trimCompressionExt(path)))
	return ext == ".msgpack" || ext == ".mpk"
}

// artifactHandle decorates a decoded ensemble with file provenance.
type artifactHandle struct {
	Handle
	info ModelInfo
}

func (h *artifactHandle) Info() ModelInfo {
	info := h.info
	info.Features = append([]string(nil), h.info.Features...)
	return info
}

// Load reads the artifact at path, inferring its format from the extension.
func Load(path string) (Handle, error) {
	return LoadFormat(path, FormatAuto)
}

// LoadFormat reads the artifact at path with the given decoder. The
// returned Handle keeps no reference to path.
//
// Errors match ErrArtifactNotFound, ErrArtifactCorrupt or ErrSchemaMismatch
// and are *ArtifactError values carrying the failing file.
func LoadFormat(path string, format Format) (Handle, error) {
	start := time.Now()

	fi, err := os.Stat(path)
	if err != nil {
		return nil, artifactError(ErrArtifactNotFound, path, err)
	}
	if fi.IsDir() {
		return nil, artifactErrorf(ErrArtifactNotFound, path, "path is a directory")
	}

	if format == "" || format == FormatAuto {
		f, ok := formatFromPath(path)
		if !ok {
			return nil, artifactErrorf(ErrUnknownFormat, path, "unrecognized extension %q", filepath.Ext(path))
		}
		format = f
	}

	raw, err := readLimited(path, MaxArtifactSize)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, artifactError(ErrArtifactNotFound, path, err)
		}
		return nil, withPath(path, err)
	}
	sum := sha256.Sum256(raw)

	data := raw
	if isCompressed(path) {
		if data, err = gunzip(raw, MaxArtifactSize); err != nil {
			return nil, withPath(path, err)
		}
	}

	h, err := decode(path, data, format)
	if err != nil {
		return nil, err
	}

	info := h.Info()
	info.SHA256 = hex.EncodeToString(sum[:])
	info.ArtifactModTime = fi.ModTime().UTC()

	log.Info().
		Str("format", string(format)).
		Int("features", h.NumFeatures()).
		Int("trees", info.NumTrees).
		Str("version", info.Version).
		Str("importance_source", info.ImportanceSource).
		Dur("took", time.Since(start)).
		Msg("Model artifact loaded")

	return &artifactHandle{Handle: h, info: info}, nil
}

func decode(path string, data []byte, format Format) (Handle, error) {
	switch format {
	case FormatBundle:
		var (
			ens *treeEnsemble
			err error
		)
		if isMsgpack(path) {
			ens, err = decodeMsgpackBundle(data)
		} else {
			ens, err = decodeJSONBundle(data)
		}
		if err != nil {
			return nil, withPath(path, err)
		}
		return ens, nil

	case FormatXGBoost, FormatLightGBM:
		ens, err := decodeLeaves(data, format)
		if err != nil {
			return nil, withPath(path, err)
		}
		sc, err := loadSidecar(path)
		if err != nil {
			return nil, withPath(sidecarPath(path), err)
		}
		m, err := newLeavesModel(ens, format, sc)
		if err != nil {
			return nil, withPath(path, err)
		}
		return m, nil

	default:
		return nil, artifactErrorf(ErrUnknownFormat, path, "format %q", format)
	}
}

func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, corruptErrorf("artifact larger than %d bytes", limit)
	}
	return data, nil
}

func gunzip(data []byte, limit int64) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, corruptErrorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, corruptErrorf("failed to decompress artifact: %w", err)
	}
	if int64(len(out)) > limit {
		return nil, corruptErrorf("decompressed artifact larger than %d bytes", limit)
	}
	return out, nil
}
