package ui

import (
	"sync"

	"github.com/eiannone/keyboard"
)

// KeyEsc is sent on the key channel for Escape and Ctrl-C.
const KeyEsc rune = 27

// Action is what the monitor does in response to a key.
type Action int

const (
	ActionNone Action = iota
	ActionToggle
	ActionQuit
)

// KeyAction maps a key to a monitor action: t toggles chart/table, q or Esc
// quits.
func KeyAction(r rune) Action {
	switch r {
	case 't', 'T':
		return ActionToggle
	case 'q', 'Q', KeyEsc:
		return ActionQuit
	}
	return ActionNone
}

// The terminal can only be put in raw mode once, so there is one reader
// goroutine feeding one buffered channel.
var (
	keyCh     chan rune
	startOnce sync.Once
	stopOnce  sync.Once
	keysOpen  bool
)

// StartKeyEvents returns a channel of single keys read without Enter. The
// first call opens the keyboard; when that fails the channel never emits and
// the monitor can only be stopped by signal. The channel closes if reading
// fails.
func StartKeyEvents() <-chan rune {
	startOnce.Do(func() {
		keyCh = make(chan rune, 64)
		if err := keyboard.Open(); err != nil {
			return
		}
		keysOpen = true
		go func() {
			for {
				char, key, err := keyboard.GetKey()
				if err != nil {
					close(keyCh)
					return
				}
				r := char
				switch key {
				case 0:
				case keyboard.KeyEsc, keyboard.KeyCtrlC:
					r = KeyEsc
				default:
					continue
				}
				// Drop keys when nobody keeps up.
				select {
				case keyCh <- r:
				default:
				}
			}
		}()
	})
	return keyCh
}

// StopKeyEvents restores the terminal. It is safe to call without a prior
// StartKeyEvents.
func StopKeyEvents() {
	stopOnce.Do(func() {
		if keysOpen {
			_ = keyboard.Close()
		}
	})
}

// DrainKeys discards keys typed before the monitor started.
func DrainKeys() {
	ch := StartKeyEvents()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
