// Copyright 2024 Probeworks
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auxpin

import (
	"time"

	pubsub "github.com/mattn/go-pubsub"
	"github.com/rs/zerolog"
)

// FrequencyEvent is published after every completed frequency measurement.
type FrequencyEvent struct {
	Measurement Measurement `json:"measurement"`
	Time        time.Time   `json:"time"`
}

// WaveformEvent is published whenever the waveform generator state changes.
type WaveformEvent struct {
	Mode      string    `json:"mode"`
	Frequency uint32    `json:"frequency"`
	DutyCycle uint32    `json:"duty-cycle"`
	Time      time.Time `json:"time"`
}

// eventService fans out AUX events to registered receivers.
type eventService struct {
	log             zerolog.Logger
	frequencyEvents *pubsub.PubSub
	waveformEvents  *pubsub.PubSub
}

func newEventService(log zerolog.Logger) *eventService {
	return &eventService{
		log:             log,
		frequencyEvents: pubsub.New(),
		waveformEvents:  pubsub.New(),
	}
}

func (s *eventService) publishFrequency(ev FrequencyEvent) {
	s.frequencyEvents.Pub(ev)
}

func (s *eventService) publishWaveform(ev WaveformEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	s.waveformEvents.Pub(ev)
}

// SubscribeFrequency registers a callback for frequency events.
// The returned function cancels the registration.
func (s *eventService) SubscribeFrequency(cb func(FrequencyEvent)) func() {
	s.frequencyEvents.Sub(cb)
	return func() {
		s.frequencyEvents.Leave(cb)
	}
}

// SubscribeWaveform registers a callback for waveform events.
// The returned function cancels the registration.
func (s *eventService) SubscribeWaveform(cb func(WaveformEvent)) func() {
	s.waveformEvents.Sub(cb)
	return func() {
		s.waveformEvents.Leave(cb)
	}
}
