// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

// Observer is a side-channel hook invoked around each completion call with
// the raw wire payloads. Verbose mode installs one to dump request and
// response bodies; the core call path never formats output itself.
//
// The payloads passed in must be treated as read-only.
type Observer interface {
	RequestSent(body []byte)
	ResponseReceived(body []byte)
}

// ObserverFuncs adapts plain functions to the Observer interface. Nil
// fields are skipped.
type ObserverFuncs struct {
	OnRequest  func(body []byte)
	OnResponse func(body []byte)
}

func (o ObserverFuncs) RequestSent(body []byte) {
	if o.OnRequest != nil {
		o.OnRequest(body)
	}
}

func (o ObserverFuncs) ResponseReceived(body []byte) {
	if o.OnResponse != nil {
		o.OnResponse(body)
	}
}
