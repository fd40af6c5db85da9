package serialization

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/version"
)

// Write encodes tensors in .born format.
//
// Tensors are stored in name order. Zero header fields are filled in:
// FormatVersion, BornVersion, ModelType, CreatedAt and a random RunID.
// The data checksum is added to the metadata; header.Tensors is ignored.
func Write(w io.Writer, tensors map[string]*tensor.RawTensor, header Header) error {
	names := slices.Sorted(maps.Keys(tensors))

	var data []byte
	header.Tensors = make([]TensorMeta, 0, len(names))
	for _, name := range names {
		raw := tensors[name]
		start := len(data)
		data = encodeTensor(data, raw)
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  slices.Clone([]int(raw.Shape())),
			Offset: int64(start),
			Size:   int64(len(data) - start),
		})
	}

	header.FormatVersion = FormatVersion
	header.BornVersion = version.Resolve().Version
	if header.ModelType == "" {
		header.ModelType = ModelType
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.RunID == "" {
		header.RunID = uuid.NewString()
	}
	metadata := make(map[string]string, len(header.Metadata)+1)
	maps.Copy(metadata, header.Metadata)
	metadata[MetaChecksum] = Checksum(data)
	header.Metadata = metadata

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	flags := FlagHasMetadata
	if header.Checkpoint != nil {
		flags |= FlagHasCheckpoint
	}

	var prefix bytes.Buffer
	prefix.WriteString(MagicBytes)
	prefix.Write(binary.LittleEndian.AppendUint32(nil, FormatVersion))
	prefix.Write(binary.LittleEndian.AppendUint32(nil, flags))
	prefix.Write(binary.LittleEndian.AppendUint64(nil, uint64(len(headerJSON))))
	prefix.Write(headerJSON)
	prefix.Write(make([]byte, alignedDataOffset(int64(len(headerJSON)))-int64(prefix.Len())))

	if _, err := w.Write(prefix.Bytes()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write tensor data: %w", err)
	}
	return nil
}

// WriteFile writes a .born file atomically: the data goes to a temporary
// file in the same directory, which is renamed over path on success.
func WriteFile(path string, tensors map[string]*tensor.RawTensor, header Header) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Write(tmp, tensors, header); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// encodeTensor appends the little-endian encoding of raw to dst.
func encodeTensor(dst []byte, raw *tensor.RawTensor) []byte {
	switch raw.DType() {
	case tensor.Float32:
		for _, v := range raw.AsFloat32() {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
		}
	case tensor.Int32:
		for _, v := range raw.AsInt32() {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(v)) //nolint:gosec // G115: bit pattern preserved
		}
	case tensor.Bool:
		for _, v := range raw.AsBool() {
			var b byte
			if v {
				b = 1
			}
			dst = append(dst, b)
		}
	default:
		panic(fmt.Sprintf("serialization: unsupported dtype %s", raw.DType()))
	}
	return dst
}

// decodeTensor is the inverse of encodeTensor.
func decodeTensor(meta TensorMeta, data []byte, device tensor.Device) (*tensor.RawTensor, error) {
	dtype, ok := tensor.ParseDataType(meta.DType)
	if !ok {
		return nil, fmt.Errorf("tensor %s: unsupported dtype %q", meta.Name, meta.DType)
	}
	raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, device)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
	}
	if len(data) != raw.ByteSize() {
		return nil, fmt.Errorf("tensor %s: %d bytes for %d expected", meta.Name, len(data), raw.ByteSize())
	}

	switch dtype {
	case tensor.Float32:
		dst := raw.AsFloat32()
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		}
	case tensor.Int32:
		dst := raw.AsInt32()
		for i := range dst {
			dst[i] = int32(binary.LittleEndian.Uint32(data[4*i:])) //nolint:gosec // G115: bit pattern preserved
		}
	case tensor.Bool:
		dst := raw.AsBool()
		for i := range dst {
			dst[i] = data[i] != 0
		}
	}
	return raw, nil
}
