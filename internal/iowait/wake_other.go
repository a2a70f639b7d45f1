//go:build !unix

package iowait

// No pollable wake primitive; waits race on the signal channel instead.

func (s *InterruptSignal) initWake() error { return nil }

func (s *InterruptSignal) wake() {}

func (s *InterruptSignal) drain() {}

func (s *InterruptSignal) closeWake() error { return nil }
