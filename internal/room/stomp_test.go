package room

import (
	"testing"
)

func TestFrameRoundTripEscapesHeaders(t *testing.T) {
	f := newFrame(cmdSend, "destination", "/app/room/AB:CD/chat", "note", "line1\nline2")
	f.body = []byte(`{"message":"hi"}`)

	encoded := f.encode()
	frames, err := decodeFrames(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	got := frames[0]
	if got.command != cmdSend || got.get("destination") != "/app/room/AB:CD/chat" || got.get("note") != "line1\nline2" {
		t.Fatalf("unexpected frame %+v", got)
	}
	if string(got.body) != `{"message":"hi"}` {
		t.Fatalf("unexpected body %q", got.body)
	}
	if got.get("content-length") != "16" {
		t.Fatalf("expected content-length header, got %q", got.get("content-length"))
	}
}

func TestDecodeFramesHeartbeatsAndBatches(t *testing.T) {
	data := []byte("\n\nMESSAGE\nsubscription:a\n\nfirst\x00\nMESSAGE\r\nsubscription:b\r\n\r\nsecond\x00")
	frames, err := decodeFrames(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected two frames, got %d", len(frames))
	}
	if frames[0].get("subscription") != "a" || string(frames[0].body) != "first" {
		t.Fatalf("unexpected first frame %+v", frames[0])
	}
	if frames[1].get("subscription") != "b" || string(frames[1].body) != "second" {
		t.Fatalf("unexpected second frame %+v", frames[1])
	}
}

func TestDecodeFrameContentLengthAllowsNUL(t *testing.T) {
	data := []byte("MESSAGE\ncontent-length:3\n\na\x00b\x00")
	frames, err := decodeFrames(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(frames) != 1 || string(frames[0].body) != "a\x00b" {
		t.Fatalf("unexpected frames %+v", frames)
	}
	if _, err := decodeFrames([]byte("MESSAGE\ncontent-length:9\n\nab\x00")); err == nil {
		t.Fatalf("expected bad content-length error")
	}
}

func TestConnectFramesAreNotEscaped(t *testing.T) {
	f := newFrame(cmdConnect, "host", "a:b")
	frames, err := decodeFrames(f.encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frames[0].get("host") != "a:b" {
		t.Fatalf("unexpected host %q", frames[0].get("host"))
	}
}

func TestFirstRepeatedHeaderWins(t *testing.T) {
	frames, err := decodeFrames([]byte("MESSAGE\nsubscription:first\nsubscription:second\n\n\x00"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frames[0].get("subscription") != "first" {
		t.Fatalf("expected first header value")
	}
}
