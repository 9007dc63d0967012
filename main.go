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

package main

import (
	"context"
	"fmt"
	"os"

	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/probeworks/auxpin/model"
	"github.com/probeworks/auxpin/pkg/environment"
	"github.com/probeworks/auxpin/pkg/logging"
	"github.com/probeworks/auxpin/server"
	"github.com/probeworks/auxpin/service"
	"github.com/probeworks/auxpin/service/auxpin"
	"github.com/probeworks/auxpin/service/bridge"
	"github.com/probeworks/auxpin/service/mqtt"
	"github.com/probeworks/auxpin/ui"
)

const (
	projectName          = "AUX probe"
	defaultHTTPPort      = 7133
	defaultSSHPort       = 7132
	defaultDiscoveryPort = 7134
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
)

func main() {
	var levelFlag string
	var bridgeType string
	var serverHost string
	var httpPort int
	var sshPort int
	var discoveryPort int
	var alternateAux bool
	var mqttHost string
	var mqttPort int
	var mqttUser string
	var mqttPassword string
	var topicPrefix string
	var simSignal uint32

	pflag.StringVarP(&levelFlag, "level", "l", "debug", "Set log level")
	pflag.StringVarP(&bridgeType, "bridge", "b", "auto", "Type of bridge to use (auto|rpi|sim|stub)")
	pflag.StringVar(&serverHost, "host", "0.0.0.0", "Host address the servers will listen on")
	pflag.IntVar(&httpPort, "http-port", defaultHTTPPort, "Port the HTTP server will listen on")
	pflag.IntVar(&sshPort, "ssh-port", defaultSSHPort, "Port the SSH UI will listen on (0 disables)")
	pflag.IntVar(&discoveryPort, "discovery-port", defaultDiscoveryPort, "UDP port probe announcements are broadcast on (0 disables)")
	pflag.BoolVar(&alternateAux, "alternate-aux", false, "Use the CS pin as AUX instead of AUX0")
	pflag.StringVar(&mqttHost, "mqtt-host", "", "Host of the MQTT broker (empty disables MQTT)")
	pflag.IntVar(&mqttPort, "mqtt-port", 1883, "Port of the MQTT broker")
	pflag.StringVar(&mqttUser, "mqtt-user", "", "Username for the MQTT broker")
	pflag.StringVar(&mqttPassword, "mqtt-password", "", "Password for the MQTT broker")
	pflag.StringVar(&topicPrefix, "topic-prefix", "auxpin", "Prefix for all MQTT topics")
	pflag.Uint32Var(&simSignal, "sim-signal", 1000, "Frequency (Hz) of the simulated input signal")
	pflag.Parse()

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())

	level, err := zerolog.ParseLevel(levelFlag)
	if err != nil {
		Exitf("Invalid log level '%s': %v\n", levelFlag, err)
	}
	logLines := logging.NewRingWriter(512)
	mqttLogWriter := logging.NewMQTTWriter(ctx)
	logger := zerolog.New(logging.NewMultiWriter(
		zerolog.ConsoleWriter{Out: os.Stderr},
		logLines,
		mqttLogWriter,
	)).Level(level).With().Timestamp().Logger()

	if bridgeType == "auto" {
		bridgeType = environment.AutoDetectBridgeType(logger)
	}
	var br bridge.API
	switch bridgeType {
	case "rpi":
		br, err = bridge.NewRaspberryPiBridge()
		if err != nil {
			Exitf("Failed to initialize Raspberry Pi bridge: %v\n", err)
		}
	case "sim":
		br = bridge.NewSimBridge(bridge.SimConfig{SignalHz: float64(simSignal), TimeScale: 1}, logger)
	case "stub":
		br = bridge.NewStubBridge()
	default:
		Exitf("Unknown bridge type '%s' (auto|rpi|sim|stub)\n", bridgeType)
	}

	pins := model.ModeConfiguration{}
	if alternateAux {
		pins.AlternateAux = 1
	}
	auxMgr := auxpin.NewManager(auxpin.Dependencies{
		Log:    logger,
		Bridge: br,
		Pins:   pins,
	})

	var mqttSvc mqtt.Service
	if mqttHost != "" {
		mqttSvc, err = mqtt.NewService(mqtt.Config{
			Host:     mqttHost,
			Port:     mqttPort,
			UserName: mqttUser,
			Password: mqttPassword,
			ClientID: fmt.Sprintf("auxpin-%d", os.Getpid()),
		}, logger)
		if err != nil {
			Exitf("Failed to initialize MQTT service: %v\n", err)
		}
		defer mqttSvc.Close()
		mqttLogWriter.SetDestination(topicPrefix+"/logs", mqttSvc)
		mqttLogWriter.Enable(true)
	}

	svc, err := service.NewService(service.Config{
		ProgramVersion: projectVersion,
		TopicPrefix:    topicPrefix,
		DiscoveryPort:  discoveryPort,
		HTTPPort:       httpPort,
		SSHPort:        sshPort,
	}, service.Dependencies{
		Log:    logger,
		Bridge: br,
		Aux:    auxMgr,
		MQTT:   mqttSvc,
	})
	if err != nil {
		Exitf("Failed to initialize service: %v\n", err)
	}

	uiFactory := &ui.Factory{
		Log:     logger,
		Aux:     auxMgr,
		Logs:    logLines,
		Version: projectVersion,
	}
	httpServer, err := server.New(server.Config{
		Host:     serverHost,
		HTTPPort: httpPort,
		SSHPort:  sshPort,
	}, logger, auxMgr, uiFactory, logLines)
	if err != nil {
		Exitf("Failed to initialize server: %v\n", err)
	}

	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	g.Go(func() error { return httpServer.Run(ctx) })
	if err := g.Wait(); err != nil {
		Exitf("Service run failed: %#v", err)
	}
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
