package tsm

import (
	"encoding/json"
	"testing"
)

func TestNewCommandValidates(t *testing.T) {
	cmd, err := NewCommand(CmdQueueAdd, QueueAddBody{URL: "https://youtu.be/x"})
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	if err := ValidateCommandEnvelope(cmd); err == nil {
		t.Fatalf("expected missing id error")
	}
	cmd.ID = "id"
	cmd.TS = 1
	cmd.From = "tester"
	if err := ValidateCommandEnvelope(cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body QueueAddBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.URL != "https://youtu.be/x" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestValidateCommandEnvelopeMissingFields(t *testing.T) {
	if err := ValidateCommandEnvelope(CommandEnvelope{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTopics(t *testing.T) {
	if got := TopicCommands(BaseTopic, "bot1"); got != "tsm/v1/node/bot1/cmd" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := TopicState(BaseTopic, "bot1"); got != "tsm/v1/node/bot1/state" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := TopicReply(BaseTopic, "cli"); got != "tsm/v1/reply/cli" {
		t.Fatalf("unexpected topic %q", got)
	}
}
