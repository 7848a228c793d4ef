package carv1

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/banyancomputer/banyanfs/errs"
)

// ldWrite and ldRead are the carv1-internal length-delimited framing
// helpers, a direct adaptation of the teacher's util.LdWrite/util.LdRead to
// a single byte slice argument (the header blob has no separate CID part).
func ldWrite(w io.Writer, d []byte) error {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, uint64(len(d)))
	if _, err := w.Write(buf[:n]); err != nil {
		return err
	}
	_, err := w.Write(d)
	return err
}

func ldSize(d []byte) uint64 {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, uint64(len(d)))
	return uint64(len(d) + n)
}

func ldRead(r *bufio.Reader) ([]byte, uint64, error) {
	if _, err := r.Peek(1); err != nil {
		return nil, 0, err
	}
	l, err := binary.ReadUvarint(r)
	if err != nil {
		if err == io.EOF {
			return nil, 0, io.ErrUnexpectedEOF
		}
		return nil, 0, err
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, 0, errs.New(errs.KindCorruptFrame, err)
	}
	return buf, ldSize(buf), nil
}
