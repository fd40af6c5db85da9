package serialization

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/transformer"
)

// ModelTensors returns the raw tensors of every named model parameter.
func ModelTensors[B tensor.Backend](model *transformer.Transformer[B]) map[string]*tensor.RawTensor {
	named := model.NamedParameters()
	tensors := make(map[string]*tensor.RawTensor, len(named))
	for name, p := range named {
		tensors[name] = p.Tensor().Raw()
	}
	return tensors
}

// ModelHeader returns a header carrying the model configuration.
func ModelHeader[B tensor.Backend](model *transformer.Transformer[B], ckpt *CheckpointMeta) (Header, error) {
	cfg, err := json.Marshal(model.Config())
	if err != nil {
		return Header{}, fmt.Errorf("marshal model config: %w", err)
	}
	return Header{
		Metadata:   map[string]string{MetaConfig: string(cfg)},
		Checkpoint: ckpt,
	}, nil
}

// SaveModel writes the model parameters and configuration to path.
// ckpt may be nil.
func SaveModel[B tensor.Backend](path string, model *transformer.Transformer[B], ckpt *CheckpointMeta) error {
	header, err := ModelHeader(model, ckpt)
	if err != nil {
		return err
	}
	return WriteFile(path, ModelTensors(model), header)
}

// WriteModel is SaveModel for an arbitrary writer.
func WriteModel[B tensor.Backend](w io.Writer, model *transformer.Transformer[B], ckpt *CheckpointMeta) error {
	header, err := ModelHeader(model, ckpt)
	if err != nil {
		return err
	}
	return Write(w, ModelTensors(model), header)
}

// Config decodes the model configuration stored in the file metadata.
func (f *File) Config() (transformer.Config, error) {
	raw, ok := f.Header.Metadata[MetaConfig]
	if !ok {
		return transformer.Config{}, ErrMissingConfig
	}
	var cfg transformer.Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return transformer.Config{}, fmt.Errorf("parse model config: %w", err)
	}
	return cfg, nil
}

// LoadModel reads path, builds a model from the stored configuration
// and copies the stored parameters into it.
func LoadModel[B tensor.Backend](path string, backend B) (*transformer.Transformer[B], *File, error) {
	file, err := ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	model, err := BuildModel(file, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return model, file, nil
}

// BuildModel builds a model from a decoded file.
func BuildModel[B tensor.Backend](file *File, backend B) (*transformer.Transformer[B], error) {
	cfg, err := file.Config()
	if err != nil {
		return nil, err
	}
	model, err := transformer.New(cfg, backend)
	if err != nil {
		return nil, err
	}
	if err := LoadParameters(file, model.NamedParameters()); err != nil {
		return nil, err
	}
	return model, nil
}

// LoadParameters copies the file tensors into params. Every parameter must
// be present with a matching shape; extra tensors in the file are ignored.
func LoadParameters[B tensor.Backend](file *File, params map[string]*nn.Parameter[B]) error {
	for _, name := range transformer.ParameterNames(params) {
		raw, err := file.Tensor(name)
		if err != nil {
			return err
		}
		dst := params[name].Tensor()
		if !raw.Shape().Equal(dst.Shape()) {
			return fmt.Errorf("%w: %s: file %v, model %v", ErrShapeMismatch, name, raw.Shape(), dst.Shape())
		}
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("%w: %s: dtype %s", ErrShapeMismatch, name, raw.DType())
		}
		copy(dst.Data(), raw.AsFloat32())
	}
	return nil
}
