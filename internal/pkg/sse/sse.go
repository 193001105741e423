// Package sse 读写只包含 data 字段的 text/event-stream 帧。
package sse

import (
	"bufio"
	"bytes"
	"io"
)

const maxFrame = 4 << 20

// WriteData writes one "data: <payload>\n\n" frame. payload must not contain newlines.
func WriteData(w io.Writer, payload []byte) error {
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')
	_, err := w.Write(buf)
	return err
}

// Reader 逐帧读取事件流，多行 data 以换行拼接，注释行与其他字段被忽略。
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64<<10), maxFrame)
	return &Reader{scanner: s}
}

// Next returns the data of the next frame, or io.EOF when the stream ends.
// 流在帧中途结束时丢弃不完整的帧并返回 io.EOF。
func (r *Reader) Next() ([]byte, error) {
	var data [][]byte
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			if data != nil {
				return bytes.Join(data, []byte("\n")), nil
			}
			continue
		}
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		v := bytes.TrimPrefix(line[len("data:"):], []byte(" "))
		data = append(data, append([]byte(nil), v...))
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
