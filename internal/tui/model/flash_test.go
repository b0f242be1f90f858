package model

import (
	"testing"
	"time"
)

func TestFlashExpires(t *testing.T) {
	var f Flash

	if msg, _ := f.Get(); msg != "" {
		t.Errorf("empty flash Get() = %q", msg)
	}

	f.Set("Conversation deleted", false, 50*time.Millisecond)
	if msg, isErr := f.Get(); msg != "Conversation deleted" || isErr {
		t.Errorf("Get() = %q, %v", msg, isErr)
	}

	time.Sleep(80 * time.Millisecond)
	if msg, _ := f.Get(); msg != "" {
		t.Errorf("expired flash Get() = %q, want empty", msg)
	}
}

func TestFlashLastSetWins(t *testing.T) {
	var f Flash
	f.Set("first", false, time.Minute)
	f.Set("second", true, time.Minute)

	msg, isErr := f.Get()
	if msg != "second" || !isErr {
		t.Errorf("Get() = %q, %v, want second/true", msg, isErr)
	}
}
