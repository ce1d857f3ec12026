package serverquery

import (
	"bufio"
	"strings"
	"testing"
	"testing/iotest"
)

func TestEscapeRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"hello world",
		`back\slash`,
		`\s literal`,
		"a/b|c\nd\re\tf",
		`\\\\`,
		`trailing\`,
		"Never Gonna Give You Up | Rick Astley",
	}
	for _, in := range inputs {
		if got := Unescape(Escape(in)); got != in {
			t.Fatalf("round trip %q: got %q", in, got)
		}
	}
}

func TestEscapeReservedCharacters(t *testing.T) {
	got := Escape("a b|c/d\\e\nf\rg\th")
	want := `a\sb\pc\/d\\e\nf\rg\th`
	if got != want {
		t.Fatalf("escape: got %q want %q", got, want)
	}
}

func TestUnescapeEscapedRoundTrip(t *testing.T) {
	escaped := []string{`a\sb`, `\\s`, `\p\p`, `x\/y\\z`, `\n\r\t`}
	for _, in := range escaped {
		if got := Escape(Unescape(in)); got != in {
			t.Fatalf("inverse %q: got %q", in, got)
		}
	}
}

func TestParseRecord(t *testing.T) {
	rec := ParseRecord(`a=1 b=2\sx`)
	if len(rec) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(rec))
	}
	if rec["a"] != "1" || rec["b"] != "2 x" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestParseRecordEdgeCases(t *testing.T) {
	rec := ParseRecord("flag key=a=b  empty=")
	if v, ok := rec["flag"]; !ok || v != "" {
		t.Fatalf("expected empty flag value, got %q", v)
	}
	if rec["key"] != "a=b" {
		t.Fatalf("expected split on first '=', got %q", rec["key"])
	}
	if v, ok := rec["empty"]; !ok || v != "" {
		t.Fatalf("expected empty value")
	}
	if rec.Int("missing") != 0 {
		t.Fatalf("expected 0 for missing int")
	}
}

func TestParseList(t *testing.T) {
	recs := ParseList("a=1|a=2")
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0]["a"] != "1" || recs[1]["a"] != "2" {
		t.Fatalf("unexpected records: %v", recs)
	}
	if ParseList("") != nil {
		t.Fatalf("expected nil list for empty line")
	}
}

func TestBuildSortsAndEscapes(t *testing.T) {
	got := Build("sendtextmessage", Params{"targetmode": "2", "msg": "now playing: a|b", "target": "1"})
	want := `sendtextmessage msg=now\splaying:\sa\pb target=1 targetmode=2`
	if got != want {
		t.Fatalf("build: got %q want %q", got, want)
	}
	if Build("whoami", nil) != "whoami" {
		t.Fatalf("expected bare verb")
	}
}

func TestSplitLinesKeepsPartialData(t *testing.T) {
	r := iotest.OneByteReader(strings.NewReader("TS3\n\rclient_id=5\n\rerror id=0 msg=ok\n\rtail"))
	scanner := bufio.NewScanner(r)
	scanner.Split(splitLines)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	want := []string{"TS3", "client_id=5", "error id=0 msg=ok", "tail"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %v", len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, lines[i], want[i])
		}
	}
}

func TestDecodeNotification(t *testing.T) {
	evt := decodeNotification(`notifytextmessage targetmode=2 msg=!play\shttps:\/\/youtu.be\/abc invokerid=7 invokername=alice`)
	if evt.Type != EventTextMessage || evt.Text == nil {
		t.Fatalf("expected text message event")
	}
	if evt.Text.Msg != "!play https://youtu.be/abc" {
		t.Fatalf("unexpected msg %q", evt.Text.Msg)
	}
	if evt.Text.TargetMode != TargetChannel || evt.Text.InvokerID != "7" || evt.Text.InvokerName != "alice" {
		t.Fatalf("unexpected text fields: %+v", evt.Text)
	}

	evt = decodeNotification("notifychanneledited cid=3")
	if evt.Type != EventNotification || evt.Notify != "notifychanneledited" || evt.Record["cid"] != "3" {
		t.Fatalf("expected generic notification, got %+v", evt)
	}
}
