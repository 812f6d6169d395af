package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"IRCommand", topics.IRCommand("rack-7-tx"), "thermoguard/command/ir/rack-7-tx"},
		{"IRAck", topics.IRAck("rack-7-tx", "cmd-abc123"), "thermoguard/ack/ir/rack-7-tx/cmd-abc123"},
		{"IRRecordStart", topics.IRRecordStart("rack-7-tx"), "thermoguard/record/ir/rack-7-tx"},
		{"IRRecorded", topics.IRRecorded("rack-7-tx"), "thermoguard/recorded/ir/rack-7-tx"},
		{"CoreEvent", topics.CoreEvent("alert_triggered"), "thermoguard/core/event/alert_triggered"},
		{"SystemStatus", topics.SystemStatus(), "thermoguard/system/status"},
		{"AllIRAcks", topics.AllIRAcks("rack-7-tx"), "thermoguard/ack/ir/rack-7-tx/+"},
		{"AllIRRecorded", topics.AllIRRecorded(), "thermoguard/recorded/ir/+"},
		{"AllCoreEvents", topics.AllCoreEvents(), "thermoguard/core/event/+"},
		{"AllTopics", topics.AllTopics(), "thermoguard/#"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Publish("", []byte("x"), 1, false); err != ErrInvalidTopic {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("thermoguard/test", []byte("x"), 3, false); err != ErrInvalidQoS {
		t.Errorf("invalid qos: got %v, want ErrInvalidQoS", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Subscribe("", 1, func(string, []byte) error { return nil }); err != ErrInvalidTopic {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("thermoguard/test", 3, func(string, []byte) error { return nil }); err != ErrInvalidQoS {
		t.Errorf("invalid qos: got %v, want ErrInvalidQoS", err)
	}
}
