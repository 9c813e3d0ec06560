package intake

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClamd 实现 clamd INSTREAM 协议的最小子集：读完数据块后按内容返回结果并关闭连接。
func fakeClamd(t *testing.T, verdict func(data []byte) string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				if _, err := r.ReadString('\n'); err != nil {
					return
				}
				var data bytes.Buffer
				for {
					var size uint32
					if err := binary.Read(r, binary.BigEndian, &size); err != nil {
						return
					}
					if size == 0 {
						break
					}
					if _, err := io.CopyN(&data, r, int64(size)); err != nil {
						return
					}
				}
				_, _ = io.WriteString(conn, verdict(data.Bytes())+"\n")
			}()
		}
	}()
	return "tcp://" + ln.Addr().String()
}

func TestClamdScanner(t *testing.T) {
	addr := fakeClamd(t, func(data []byte) string {
		if bytes.Contains(data, []byte("EICAR")) {
			return "stream: Eicar-Test-Signature FOUND"
		}
		return "stream: OK"
	})
	scanner := ClamdScanner{Addr: addr}
	ctx := context.Background()

	require.NoError(t, scanner.Scan(ctx, bytes.NewReader([]byte("%PDF-1.7 clean"))))

	err := scanner.Scan(ctx, bytes.NewReader([]byte("%PDF-1.7 EICAR payload")))
	require.ErrorIs(t, err, ErrInfected)
	assert.Contains(t, err.Error(), "Eicar-Test-Signature")
}

func TestClamdScannerUnavailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := "tcp://" + ln.Addr().String()
	require.NoError(t, ln.Close())

	err = ClamdScanner{Addr: addr}.Scan(context.Background(), bytes.NewReader([]byte("%PDF-")))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInfected)

	assert.Error(t, ClamdScanner{}.Scan(context.Background(), bytes.NewReader(nil)))
}
