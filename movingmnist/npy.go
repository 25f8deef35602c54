/*
 *	Copyright 2024 The Learning Visual Embeddings Authors
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package movingmnist

// Minimal NumPy ".npy" reader/writer: only C-order uint8 and float32 arrays,
// which is all the Moving MNIST file and the tooling around it need.

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

const npyMagic = "\x93NUMPY"

// Array is a NumPy array read from a ".npy" file: flat data in C-order (row-major)
// plus its dimensions and dtype.
type Array struct {
	DType dtypes.DType
	Dims  []int
	Data  []byte
}

// Size returns the number of elements of the array.
func (a *Array) Size() int {
	size := 1
	for _, dim := range a.Dims {
		size *= dim
	}
	return size
}

// ReadNpyFile opens and parses a ".npy" file.
func ReadNpyFile(filePath string) (*Array, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npy file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	a, err := ReadNpy(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "while reading %q", filePath)
	}
	return a, nil
}

// ReadNpy parses a ".npy" stream.
//
// Only little-endian, C-order (not fortran_order) uint8 and float32 arrays are
// supported, which covers the Moving MNIST file and everything this repository writes.
func ReadNpy(r io.Reader) (*Array, error) {
	magic := make([]byte, 6)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, errors.Wrapf(err, "failed to read magic string")
	}
	if string(magic) != npyMagic {
		return nil, errors.Errorf("invalid .npy file: magic string mismatch")
	}

	version := make([]byte, 2)
	if _, err := io.ReadFull(r, version); err != nil {
		return nil, errors.Wrapf(err, "failed to read version")
	}
	var headerLen int
	switch {
	case version[0] == 1:
		lenBytes := make([]byte, 2)
		if _, err := io.ReadFull(r, lenBytes); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v1.0)")
		}
		headerLen = int(binary.LittleEndian.Uint16(lenBytes))
	case version[0] >= 2:
		lenBytes := make([]byte, 4)
		if _, err := io.ReadFull(r, lenBytes); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v2.0+)")
		}
		headerLen = int(binary.LittleEndian.Uint32(lenBytes))
	default:
		return nil, errors.Errorf("unsupported .npy version: %d.%d", version[0], version[1])
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, errors.Wrapf(err, "failed to read header")
	}
	descr, dims, fortranOrder, err := parseNpyHeader(string(headerBytes))
	if err != nil {
		return nil, err
	}
	if fortranOrder {
		return nil, errors.Errorf("fortran_order .npy files are not supported")
	}

	dtype, err := npyDescrToDType(descr)
	if err != nil {
		return nil, err
	}
	a := &Array{DType: dtype, Dims: dims}
	a.Data = make([]byte, a.Size()*dtype.Size())
	if _, err := io.ReadFull(r, a.Data); err != nil {
		return nil, errors.Wrapf(err, "failed to read array data (expected %d bytes)", len(a.Data))
	}
	return a, nil
}

// parseNpyHeader extracts descr, shape and fortran_order from the header dict.
func parseNpyHeader(header string) (descr string, dims []int, fortranOrder bool, err error) {
	reDescr := regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	mDescr := reDescr.FindStringSubmatch(header)
	if len(mDescr) < 2 {
		err = errors.Errorf("could not find 'descr' in .npy header %q", header)
		return
	}
	descr = mDescr[1]

	reFortran := regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	mFortran := reFortran.FindStringSubmatch(header)
	if len(mFortran) < 2 {
		err = errors.Errorf("could not find 'fortran_order' in .npy header %q", header)
		return
	}
	fortranOrder = mFortran[1] == "True"

	reShape := regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
	mShape := reShape.FindStringSubmatch(header)
	if len(mShape) < 2 {
		err = errors.Errorf("could not find 'shape' in .npy header %q", header)
		return
	}
	shapeStr := strings.TrimSpace(mShape[1])
	if shapeStr == "" {
		return // Scalar: empty dims.
	}
	for _, part := range strings.Split(shapeStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue // Trailing comma, as in "(10,)".
		}
		var dim int
		dim, err = strconv.Atoi(part)
		if err != nil {
			err = errors.Wrapf(err, "invalid dimension %q in .npy header", part)
			return
		}
		dims = append(dims, dim)
	}
	return
}

func npyDescrToDType(descr string) (dtypes.DType, error) {
	switch {
	case strings.HasSuffix(descr, "u1"):
		return dtypes.Uint8, nil
	case strings.HasSuffix(descr, "f4"):
		if strings.HasPrefix(descr, ">") {
			return dtypes.InvalidDType, errors.Errorf("big-endian .npy files (%q) are not supported", descr)
		}
		return dtypes.Float32, nil
	}
	return dtypes.InvalidDType, errors.Errorf("unsupported .npy dtype %q (only uint8 and float32 are supported)", descr)
}

func dtypeToNpyDescr(dtype dtypes.DType) (string, error) {
	switch dtype {
	case dtypes.Uint8:
		return "|u1", nil
	case dtypes.Float32:
		return "<f4", nil
	}
	return "", errors.Errorf("unsupported dtype %s for .npy (only uint8 and float32 are supported)", dtype)
}

// WriteNpyFile serializes the array to a ".npy" file.
func WriteNpyFile(a *Array, filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create .npy file %q", filePath)
	}
	if err = WriteNpy(a, f); err != nil {
		_ = f.Close()
		return errors.WithMessagef(err, "while writing %q", filePath)
	}
	return errors.Wrapf(f.Close(), "failed to close %q", filePath)
}

// WriteNpy serializes the array in ".npy" (version 1.0) format.
func WriteNpy(a *Array, w io.Writer) error {
	descr, err := dtypeToNpyDescr(a.DType)
	if err != nil {
		return err
	}
	if want := a.Size() * a.DType.Size(); len(a.Data) != want {
		return errors.Errorf("array data has %d bytes, dimensions %v require %d", len(a.Data), a.Dims, want)
	}

	var shapeTuple string
	switch len(a.Dims) {
	case 0:
		shapeTuple = "()"
	case 1:
		shapeTuple = fmt.Sprintf("(%d,)", a.Dims[0])
	default:
		dimsStr := make([]string, len(a.Dims))
		for i, dim := range a.Dims {
			dimsStr[i] = strconv.Itoa(dim)
		}
		shapeTuple = fmt.Sprintf("(%s)", strings.Join(dimsStr, ", "))
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shapeTuple)
	// Preamble (magic + version + header length) is 10 bytes; the header is padded
	// with spaces plus a final newline so the data starts at a multiple of 16.
	for (10+len(header)+1)%16 != 0 {
		header += " "
	}
	header += "\n"

	if _, err = w.Write([]byte(npyMagic)); err != nil {
		return errors.Wrapf(err, "failed to write magic string")
	}
	if _, err = w.Write([]byte{1, 0}); err != nil {
		return errors.Wrapf(err, "failed to write version")
	}
	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, uint16(len(header)))
	if _, err = w.Write(lenBytes); err != nil {
		return errors.Wrapf(err, "failed to write header length")
	}
	if _, err = w.Write([]byte(header)); err != nil {
		return errors.Wrapf(err, "failed to write header")
	}
	if _, err = w.Write(a.Data); err != nil {
		return errors.Wrapf(err, "failed to write array data")
	}
	return nil
}
