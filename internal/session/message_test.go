package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCredentialMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     CredentialMessage
		wantErr bool
	}{
		{"empty", CredentialMessage{}, true},
		{"whitespace", CredentialMessage{Credential: "   "}, true},
		{"two segments", CredentialMessage{Credential: "a.b"}, true},
		{"empty payload", CredentialMessage{Credential: "a..c"}, true},
		{"three segments", CredentialMessage{Credential: "a.b.c", SelectBy: "btn"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("error should wrap ErrInvalidMessage: %v", err)
			}
		})
	}
}

func TestHandleCredential_RejectsBeforeDecoding(t *testing.T) {
	p := newTestPage(t, "", nil)

	err := p.ctrl.HandleCredential(context.Background(), CredentialMessage{Credential: "garbage"})
	if !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("err = %v, want ErrInvalidMessage", err)
	}
	if p.doc.ShellVisible() {
		t.Error("shell should stay hidden")
	}
}

func TestListen_ProcessesMessagesInOrder(t *testing.T) {
	p := newTestPage(t, "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages := make(chan CredentialMessage)
	done := make(chan struct{})
	go func() {
		p.ctrl.Listen(ctx, messages)
		close(done)
	}()

	reply := make(chan error, 1)
	messages <- CredentialMessage{Credential: "bad", Reply: reply}
	if err := <-reply; !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("first reply = %v, want ErrInvalidMessage", err)
	}

	messages <- CredentialMessage{Credential: validToken(t), Reply: reply}
	if err := <-reply; err != nil {
		t.Errorf("second reply = %v, want nil", err)
	}
	if !p.doc.ShellVisible() {
		t.Error("shell should be visible after a valid credential")
	}

	close(messages)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after channel close")
	}
}
