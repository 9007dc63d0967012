//    Copyright 2024 Probeworks
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/probeworks/auxpin/service/auxpin"
	"github.com/probeworks/auxpin/service/bridge"
	"github.com/probeworks/auxpin/service/mqtt"
)

type Service interface {
	// Run the probe service until the given context is cancelled.
	Run(ctx context.Context) error
	// HostID returns the stable identifier of this probe.
	HostID() string
}

type Config struct {
	ProgramVersion string
	// TopicPrefix is prepended to all MQTT topics.
	TopicPrefix string
	// DiscoveryPort is the UDP port probe announcements are broadcast
	// on. Zero disables announcements.
	DiscoveryPort int
	// HTTPPort is announced to discovery listeners.
	HTTPPort int
	// SSHPort is announced to discovery listeners.
	SSHPort int
}

type Dependencies struct {
	Log    zerolog.Logger
	Bridge bridge.API
	Aux    *auxpin.Manager
	// MQTT is optional; when nil no events are published to a broker.
	MQTT mqtt.Service
}

type service struct {
	Config
	Dependencies

	hostID string
}

// NewService creates a Service instance and returns it.
func NewService(conf Config, deps Dependencies) (Service, error) {
	deps.Log = deps.Log.With().Str("component", "service").Logger()
	hostID, err := createHostID()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create host ID")
	}
	return &service{
		Config:       conf,
		Dependencies: deps,
		hostID:       hostID,
	}, nil
}

// HostID returns the stable identifier of this probe.
func (s *service) HostID() string {
	return s.hostID
}

// Run announces the probe on the local network and forwards AUX events
// to the MQTT broker until the given context is cancelled.
func (s *service) Run(ctx context.Context) error {
	log := s.Log.With().Str("id", s.hostID).Logger()
	defer s.Bridge.Close()

	log.Info().
		Str("version", s.ProgramVersion).
		Str("pin", s.Aux.Pins.AuxPin().String()).
		Msg("AUX probe service starting")

	g, ctx := errgroup.WithContext(ctx)
	if s.DiscoveryPort > 0 {
		g.Go(func() error {
			return s.announceProbe(ctx)
		})
	}
	if s.MQTT != nil {
		g.Go(func() error {
			return s.runEventForwarder(ctx)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}

// runEventForwarder subscribes to AUX events and publishes them to the
// MQTT broker. Events that arrive while a publish is still in flight
// replace the queued one; the broker sees the latest state, not every
// intermediate one.
func (s *service) runEventForwarder(ctx context.Context) error {
	log := s.Log.With().Str("component", "event-forwarder").Logger()

	frequencyChanges := make(chan auxpin.FrequencyEvent, 8)
	waveformChanges := make(chan auxpin.WaveformEvent, 8)

	cancelFrequency := s.Aux.SubscribeFrequency(func(ev auxpin.FrequencyEvent) {
		select {
		case frequencyChanges <- ev:
			// Queued
		default:
			// Forwarder is behind; drop the oldest
			select {
			case <-frequencyChanges:
			default:
			}
			frequencyChanges <- ev
		}
	})
	defer cancelFrequency()
	cancelWaveform := s.Aux.SubscribeWaveform(func(ev auxpin.WaveformEvent) {
		select {
		case waveformChanges <- ev:
		default:
			select {
			case <-waveformChanges:
			default:
			}
			waveformChanges <- ev
		}
	})
	defer cancelWaveform()

	frequencyTopic := s.TopicPrefix + "/aux/frequency"
	waveformTopic := s.TopicPrefix + "/aux/waveform"
	for {
		select {
		case ev := <-frequencyChanges:
			if err := s.MQTT.Publish(ctx, ev, frequencyTopic, mqtt.QosAtMostOnce); err != nil {
				log.Warn().Err(err).Str("topic", frequencyTopic).Msg("Failed to publish frequency event")
			}
		case ev := <-waveformChanges:
			if err := s.MQTT.Publish(ctx, ev, waveformTopic, mqtt.QosAtMostOnce); err != nil {
				log.Warn().Err(err).Str("topic", waveformTopic).Msg("Failed to publish waveform event")
			}
		case <-ctx.Done():
			return nil
		}
	}
}
