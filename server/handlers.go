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

package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/probeworks/auxpin/model"
	"github.com/probeworks/auxpin/service/auxpin"
	"github.com/probeworks/auxpin/service/bridge"
)

func (s *Server) registerHandlers(e *echo.Echo) {
	e.GET("/health", s.handleHealth)
	e.GET("/api/state", s.handleState)
	e.POST("/api/pin/high", s.handlePinHigh)
	e.POST("/api/pin/low", s.handlePinLow)
	e.POST("/api/pin/input", s.handlePinInput)
	e.GET("/api/pin", s.handlePinRead)
	e.POST("/api/pwm", s.handlePWM)
	e.POST("/api/pwm/duty-cycle", s.handleDutyCycle)
	e.POST("/api/servo", s.handleServo)
	e.POST("/api/frequency", s.handleFrequency)
	e.GET("/api/frequency/coarse", s.handleFrequencyCoarse)
	e.GET("/api/logs", s.handleLogs)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.auxMgr.Status())
}

type pinResponse struct {
	Value   bool   `json:"value"`
	Message string `json:"message"`
}

func (s *Server) handlePinHigh(c echo.Context) error {
	if err := s.auxMgr.SetHigh(); err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, pinResponse{Value: true, Message: auxpin.MsgAuxHigh})
}

func (s *Server) handlePinLow(c echo.Context) error {
	if err := s.auxMgr.SetLow(); err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, pinResponse{Value: false, Message: auxpin.MsgAuxLow})
}

func (s *Server) handlePinInput(c echo.Context) error {
	if err := s.auxMgr.SetHighImpedance(); err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, pinResponse{Message: auxpin.MsgAuxInput})
}

func (s *Server) handlePinRead(c echo.Context) error {
	value, err := s.auxMgr.Read()
	if err != nil {
		return translateError(err)
	}
	msg := auxpin.MsgAuxLow
	if value {
		msg = auxpin.MsgAuxHigh
	}
	return c.JSON(http.StatusOK, pinResponse{Value: value, Message: msg})
}

type pwmRequest struct {
	Frequency uint32 `json:"frequency"`
	DutyCycle uint32 `json:"duty-cycle"`
}

func (s *Server) handlePWM(c echo.Context) error {
	var req pwmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.auxMgr.ProgramPWM(c.Request().Context(), req.Frequency, req.DutyCycle); err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, s.auxMgr.Status())
}

func (s *Server) handleDutyCycle(c echo.Context) error {
	var req pwmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.auxMgr.UpdateDutyCycle(c.Request().Context(), req.DutyCycle); err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, s.auxMgr.Status())
}

type servoRequest struct {
	Angle uint32 `json:"angle"`
}

func (s *Server) handleServo(c echo.Context) error {
	var req servoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.auxMgr.ProgramServo(c.Request().Context(), req.Angle); err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, s.auxMgr.Status())
}

type frequencyResponse struct {
	Measurement auxpin.Measurement `json:"measurement"`
	Display     string          `json:"display"`
}

func (s *Server) handleFrequency(c echo.Context) error {
	m, err := s.auxMgr.MeasureFrequency(c.Request().Context())
	if err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, frequencyResponse{Measurement: m, Display: m.String()})
}

func (s *Server) handleFrequencyCoarse(c echo.Context) error {
	freq, err := s.auxMgr.MeasureFrequencyCoarse(c.Request().Context())
	if err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, map[string]uint32{"frequency": freq})
}

func (s *Server) handleLogs(c echo.Context) error {
	if s.logLines == nil {
		return echo.NewHTTPError(http.StatusNotFound, "log capture disabled")
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}
	return c.JSON(http.StatusOK, s.logLines.Tail(limit))
}

// translateError maps domain errors onto HTTP status codes.
func translateError(err error) error {
	switch {
	case model.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case auxpin.IsPWMActive(err):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case bridge.IsNotSupported(err):
		return echo.NewHTTPError(http.StatusNotImplemented, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
