package room

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// STOMP 1.2 commands used by the client.
const (
	cmdConnect     = "CONNECT"
	cmdConnected   = "CONNECTED"
	cmdSubscribe   = "SUBSCRIBE"
	cmdUnsubscribe = "UNSUBSCRIBE"
	cmdSend        = "SEND"
	cmdMessage     = "MESSAGE"
	cmdError       = "ERROR"
	cmdDisconnect  = "DISCONNECT"
)

type header struct {
	key   string
	value string
}

type frame struct {
	command string
	headers []header
	body    []byte
}

func newFrame(command string, kv ...string) frame {
	f := frame{command: command}
	for i := 0; i+1 < len(kv); i += 2 {
		f.headers = append(f.headers, header{key: kv[i], value: kv[i+1]})
	}
	return f
}

// get returns the first value for key; repeated headers keep the first entry.
func (f frame) get(key string) string {
	for _, h := range f.headers {
		if h.key == key {
			return h.value
		}
	}
	return ""
}

// CONNECT and CONNECTED frames are not escaped.
func escapes(command string) bool {
	return command != cmdConnect && command != cmdConnected
}

var (
	headerEscaper   = strings.NewReplacer("\\", "\\\\", "\r", "\\r", "\n", "\\n", ":", "\\c")
	headerUnescaper = strings.NewReplacer("\\\\", "\\", "\\r", "\r", "\\n", "\n", "\\c", ":")
)

func (f frame) encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.command)
	buf.WriteByte('\n')
	for _, h := range f.headers {
		key, value := h.key, h.value
		if escapes(f.command) {
			key, value = headerEscaper.Replace(key), headerEscaper.Replace(value)
		}
		buf.WriteString(key)
		buf.WriteByte(':')
		buf.WriteString(value)
		buf.WriteByte('\n')
	}
	if len(f.body) > 0 && f.get("content-length") == "" {
		buf.WriteString("content-length:")
		buf.WriteString(strconv.Itoa(len(f.body)))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// decodeFrames parses every frame in data, skipping heart-beat EOLs.
func decodeFrames(data []byte) ([]frame, error) {
	var frames []frame
	for {
		data = bytes.TrimLeft(data, "\r\n")
		if len(data) == 0 {
			return frames, nil
		}
		f, rest, err := decodeFrame(data)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		data = rest
	}
}

func decodeFrame(data []byte) (frame, []byte, error) {
	end := bytes.Index(data, []byte("\n\n"))
	sep := 2
	if crlf := bytes.Index(data, []byte("\r\n\r\n")); crlf >= 0 && (end < 0 || crlf < end) {
		end, sep = crlf, 4
	}
	if end < 0 {
		return frame{}, nil, fmt.Errorf("stomp: incomplete frame header")
	}

	lines := strings.Split(strings.ReplaceAll(string(data[:end]), "\r\n", "\n"), "\n")
	f := frame{command: lines[0]}
	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return frame{}, nil, fmt.Errorf("stomp: malformed header %q", line)
		}
		if escapes(f.command) {
			key, value = headerUnescaper.Replace(key), headerUnescaper.Replace(value)
		}
		f.headers = append(f.headers, header{key: key, value: value})
	}

	body := data[end+sep:]
	if cl := f.get("content-length"); cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n > len(body) {
			return frame{}, nil, fmt.Errorf("stomp: bad content-length %q", cl)
		}
		if n < len(body) && body[n] != 0 {
			return frame{}, nil, fmt.Errorf("stomp: missing frame terminator")
		}
		f.body = body[:n]
		if n < len(body) {
			return f, body[n+1:], nil
		}
		return f, nil, nil
	}
	nul := bytes.IndexByte(body, 0)
	if nul < 0 {
		f.body = body
		return f, nil, nil
	}
	f.body = body[:nul]
	return f, body[nul+1:], nil
}
