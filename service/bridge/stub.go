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

package bridge

import (
	"context"

	"github.com/probeworks/auxpin/model"
)

// stubBridge accepts everything and does nothing. It keeps the worker
// runnable on hardware that has no AUX pins at all.
type stubBridge struct{}

// NewStubBridge creates a no-op bridge.
func NewStubBridge() API {
	return &stubBridge{}
}

func (s *stubBridge) Pin(pin model.PhysicalPin) Pin { return stubPin{} }
func (s *stubBridge) CountTimer() Timer             { return stubTimer{} }
func (s *stubBridge) WindowTimer() Timer            { return stubTimer{} }
func (s *stubBridge) Capture(index int) CaptureUnit { return stubCapture{} }
func (s *stubBridge) OutputCompare() OutputCompare  { return stubOutputCompare{} }
func (s *stubBridge) Close() error                  { return nil }

type stubPin struct{}

func (stubPin) SetDirection(PinDirection) error { return nil }
func (stubPin) Set(bool) error                  { return nil }
func (stubPin) Get() (bool, error)              { return false, nil }
func (stubPin) Settle()                         {}

type stubTimer struct{}

func (stubTimer) Clear() error                             { return nil }
func (stubTimer) SetPrescale(Prescale) error               { return nil }
func (stubTimer) SetPeriod(uint32) error                   { return nil }
func (stubTimer) ResetCounter() error                      { return nil }
func (stubTimer) ReadCounter() (uint32, error)             { return 0, nil }
func (stubTimer) UseExternalClock(model.PhysicalPin) error { return nil }
func (stubTimer) UseInternalClock() error                  { return nil }
func (stubTimer) Start() error                             { return nil }
func (stubTimer) Stop() error                              { return nil }
func (stubTimer) WaitPeriodElapsed(context.Context) error  { return nil }

type stubCapture struct{}

func (stubCapture) Arm(model.PhysicalPin) error    { return nil }
func (stubCapture) Disarm() error                  { return nil }
func (stubCapture) HasData() (bool, error)         { return false, nil }
func (stubCapture) Read() (uint16, error)          { return 0, nil }
func (stubCapture) WaitData(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type stubOutputCompare struct{}

func (stubOutputCompare) Clear() error                  { return nil }
func (stubOutputCompare) Route(model.PhysicalPin) error { return nil }
func (stubOutputCompare) Detach() error                 { return nil }
func (stubOutputCompare) SetCompare(uint32) error       { return nil }
func (stubOutputCompare) EnablePWM() error              { return nil }
