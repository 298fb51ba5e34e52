// Package arrayio reads and writes patterns and parameter matrices as NumPy
// .npy files so targets can be exchanged with the Python tooling.
package arrayio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"bioevo/internal/model"
)

var ErrUnsupportedShape = errors.New("unsupported array shape")

// DecodePattern reads a 1D or 2D float array in C or Fortran order.
func DecodePattern(r io.Reader) (model.Pattern, error) {
	npy, err := npyio.NewReader(r)
	if err != nil {
		return model.Pattern{}, fmt.Errorf("read npy header: %w", err)
	}
	shape := append([]int(nil), npy.Header.Descr.Shape...)
	if len(shape) != 1 && len(shape) != 2 {
		return model.Pattern{}, fmt.Errorf("%w: %v", ErrUnsupportedShape, shape)
	}

	values, err := readFloats(npy)
	if err != nil {
		return model.Pattern{}, err
	}
	p := model.Pattern{Shape: shape, Values: values}
	if err := p.Validate(); err != nil {
		return model.Pattern{}, fmt.Errorf("%w: %v", ErrUnsupportedShape, err)
	}
	if npy.Header.Descr.Fortran && len(shape) == 2 {
		p.Values = fromColumnMajor(values, shape[0], shape[1])
	}
	return p, nil
}

func readFloats(npy *npyio.Reader) ([]float64, error) {
	switch npy.Header.Descr.Type {
	case "<f8", "|f8", ">f8":
		var values []float64
		if err := npy.Read(&values); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
		return values, nil
	case "<f4", "|f4", ">f4":
		var values []float32
		if err := npy.Read(&values); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
		out := make([]float64, len(values))
		for i, v := range values {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q", npy.Header.Descr.Type)
	}
}

func fromColumnMajor(values []float64, rows, cols int) []float64 {
	out := make([]float64, len(values))
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			out[r*cols+c] = values[c*rows+r]
		}
	}
	return out
}

// EncodePattern writes p as a C-order float64 array of the same shape.
func EncodePattern(w io.Writer, p model.Pattern) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedShape, err)
	}
	if p.Dims() == 1 {
		return npyio.Write(w, p.Values)
	}
	return npyio.Write(w, mat.NewDense(p.Rows(), p.Cols(), append([]float64(nil), p.Values...)))
}

// EncodeParams writes a len(params) x 3 matrix, one vector per row.
func EncodeParams(w io.Writer, params []model.Params) error {
	if len(params) == 0 {
		return fmt.Errorf("%w: no parameter vectors", ErrUnsupportedShape)
	}
	data := make([]float64, 0, len(params)*model.ParamCount)
	for _, p := range params {
		data = append(data, p.Slice()...)
	}
	return npyio.Write(w, mat.NewDense(len(params), model.ParamCount, data))
}

// DecodeParams accepts a K x 3 matrix or a single length-3 vector.
func DecodeParams(r io.Reader) ([]model.Params, error) {
	p, err := DecodePattern(r)
	if err != nil {
		return nil, err
	}
	if p.Cols() != model.ParamCount {
		return nil, fmt.Errorf("%w: parameter arrays need %d columns, got shape %v", ErrUnsupportedShape, model.ParamCount, p.Shape)
	}
	out := make([]model.Params, 0, p.Rows())
	for r := 0; r < p.Rows(); r++ {
		params, err := model.ParamsFromSlice(p.Values[r*model.ParamCount : (r+1)*model.ParamCount])
		if err != nil {
			return nil, err
		}
		out = append(out, params)
	}
	return out, nil
}

func ReadPattern(path string) (model.Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Pattern{}, err
	}
	defer f.Close()
	p, err := DecodePattern(f)
	if err != nil {
		return model.Pattern{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func WritePattern(path string, p model.Pattern) error {
	return writeFile(path, func(w io.Writer) error { return EncodePattern(w, p) })
}

func ReadParams(path string) ([]model.Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	params, err := DecodeParams(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return params, nil
}

func WriteParams(path string, params []model.Params) error {
	return writeFile(path, func(w io.Writer) error { return EncodeParams(w, params) })
}

func writeFile(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
