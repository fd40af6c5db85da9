package serialization

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// File is a decoded .born file.
type File struct {
	Header  Header
	Flags   uint32
	Tensors map[string]*tensor.RawTensor
}

// Tensor returns the named tensor or ErrTensorNotFound.
func (f *File) Tensor(name string) (*tensor.RawTensor, error) {
	raw, ok := f.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return raw, nil
}

// ReadHeader reads the fixed header and the JSON header from r.
func ReadHeader(r io.Reader) (Header, uint32, error) {
	header, flags, _, err := readHeader(r)
	return header, flags, err
}

func readHeader(r io.Reader) (header Header, flags uint32, headerSize int64, err error) {
	fixed := make([]byte, fixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return Header{}, 0, 0, fmt.Errorf("read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return Header{}, 0, 0, fmt.Errorf("%w: got %q", ErrInvalidMagic, fixed[0:4])
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return Header{}, 0, 0, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}
	flags = binary.LittleEndian.Uint32(fixed[8:12])
	size := binary.LittleEndian.Uint64(fixed[12:20])
	if size > MaxHeaderSize {
		return Header{}, 0, 0, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, size)
	}

	headerJSON := make([]byte, size)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return Header{}, 0, 0, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, 0, 0, fmt.Errorf("parse header: %w", err)
	}
	return header, flags, int64(size), nil
}

// Read decodes a .born stream, validating the tensor table and the data
// checksum before any tensor is built.
func Read(r io.Reader, device tensor.Device) (*File, error) {
	header, flags, headerSize, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	padding := alignedDataOffset(headerSize) - fixedHeaderSize - headerSize
	if _, err := io.CopyN(io.Discard, r, padding); err != nil {
		return nil, fmt.Errorf("read padding: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read tensor data: %w", err)
	}

	if err := ValidateHeader(&header, int64(len(data))); err != nil {
		return nil, fmt.Errorf("validate header: %w", err)
	}
	if err := VerifyChecksum(&header, data[:header.DataSize()]); err != nil {
		return nil, err
	}

	tensors := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		raw, err := decodeTensor(meta, data[meta.Offset:meta.Offset+meta.Size], device)
		if err != nil {
			return nil, err
		}
		tensors[meta.Name] = raw
	}
	return &File{Header: header, Flags: flags, Tensors: tensors}, nil
}

// ReadFile reads a .born file onto the CPU device.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the caller
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	file, err := Read(f, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}
