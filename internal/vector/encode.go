package vector

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Binary layout helpers shared by the backend serializers. Everything is
// little-endian with length-prefixed variable parts.

const maxDecodeLen = 1 << 28 // sanity bound when reading untrusted files

func writeUint32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readLen(r io.Reader, what string) (int, error) {
	v, err := readUint32(r)
	if err != nil {
		return 0, fmt.Errorf("read %s length: %w", what, err)
	}
	if v > maxDecodeLen {
		return 0, fmt.Errorf("%s length %d exceeds sanity bound", what, v)
	}
	return int(v), nil
}

func writeUint32s(w io.Writer, vs []uint32) error {
	if err := writeUint32(w, uint32(len(vs))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, vs)
}

func readUint32s(r io.Reader, what string) ([]uint32, error) {
	n, err := readLen(r, what)
	if err != nil {
		return nil, err
	}
	vs := make([]uint32, n)
	if err := binary.Read(r, binary.LittleEndian, vs); err != nil {
		return nil, fmt.Errorf("read %s: %w", what, err)
	}
	return vs, nil
}

func writeBytes(w io.Writer, bs []byte) error {
	if err := writeUint32(w, uint32(len(bs))); err != nil {
		return err
	}
	_, err := w.Write(bs)
	return err
}

func readBytes(r io.Reader, what string) ([]byte, error) {
	n, err := readLen(r, what)
	if err != nil {
		return nil, err
	}
	bs := make([]byte, n)
	if _, err := io.ReadFull(r, bs); err != nil {
		return nil, fmt.Errorf("read %s: %w", what, err)
	}
	return bs, nil
}

// writeMatrix flattens a row-major matrix with a row count and row width prefix.
func writeMatrix(w io.Writer, rows [][]float32, width int) error {
	if err := writeUint32(w, uint32(len(rows))); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(width)); err != nil {
		return err
	}
	for _, row := range rows {
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return nil
}

func readMatrix(r io.Reader, what string) ([][]float32, int, error) {
	n, err := readLen(r, what+" rows")
	if err != nil {
		return nil, 0, err
	}
	width, err := readLen(r, what+" width")
	if err != nil {
		return nil, 0, err
	}
	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = make([]float32, width)
		if err := binary.Read(r, binary.LittleEndian, rows[i]); err != nil {
			return nil, 0, fmt.Errorf("read %s row %d: %w", what, i, err)
		}
	}
	return rows, width, nil
}
