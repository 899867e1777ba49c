package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/exp/maps"

	"github.com/homedash/presenced/config"
)

const connectTimeout = 5 * time.Second

// Publisher forwards bus events to an MQTT broker using the Home
// Assistant conventions: retained auto-discovery configs under
// homeassistant/, plain state topics under the configured prefix.
type Publisher struct {
	cfg    config.MQTTConfig
	client mqtt.Client
	stop   chan struct{}
	done   chan struct{}
}

// NewPublisher creates a publisher for the given broker configuration.
func NewPublisher(cfg config.MQTTConfig) *Publisher {
	return &Publisher{
		cfg:  cfg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start connects to the broker, publishes the discovery configs and begins
// draining the bus in a background goroutine.
func (p *Publisher) Start(bus *Bus) error {
	availability := p.cfg.TopicPrefix + "/availability"
	opts := mqtt.NewClientOptions().
		AddBroker(p.cfg.BrokerURL).
		SetClientID(p.cfg.ClientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetWill(availability, "offline", 1, true).
		SetOnConnectHandler(func(c mqtt.Client) {
			slog.Info("Connected to MQTT broker", "broker", p.cfg.BrokerURL)
			p.publishDiscovery(c)
			c.Publish(availability, 1, true, "online")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			slog.Warn("MQTT connection lost", "error", err)
		})
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	p.client = mqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timeout connecting to MQTT broker %s", p.cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("can't connect to MQTT broker %s: %w", p.cfg.BrokerURL, err)
	}

	go p.drain(bus)
	return nil
}

// Stop shuts the forwarding loop down and disconnects from the broker
// after marking the device offline.
func (p *Publisher) Stop() {
	close(p.stop)
	<-p.done
	if p.client != nil {
		p.client.Publish(p.cfg.TopicPrefix+"/availability", 1, true, "offline").Wait()
		p.client.Disconnect(250)
	}
}

func (p *Publisher) drain(bus *Bus) {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		case e := <-bus.Events():
			p.forward(e)
		}
	}
}

func (p *Publisher) forward(e Event) {
	prefix := p.cfg.TopicPrefix
	switch ev := e.(type) {
	case PresenceEvent:
		state := "clear"
		if ev.Present {
			state = "detected"
		}
		p.publish(prefix+"/proximity/state", state)
		p.publish(prefix+"/sensor/distance", strconv.Itoa(ev.DistanceMM))
	case BrightnessEvent:
		p.publish(prefix+"/sensor/display_brightness", strconv.Itoa(ev.Percent))
	case LightEvent:
		p.publish(prefix+"/sensor/lux", fmt.Sprintf("%.2f", ev.Lux))
	case EnvironmentEvent:
		p.publish(prefix+"/sensor/temperature", fmt.Sprintf("%.2f", ev.TemperatureC))
		p.publish(prefix+"/sensor/humidity", fmt.Sprintf("%.2f", ev.HumidityPercent))
		p.publish(prefix+"/sensor/pressure", fmt.Sprintf("%.2f", ev.PressureHPa))
	default:
		slog.Warn("Dropping telemetry event of unknown type", "event", fmt.Sprintf("%T", e))
	}
}

func (p *Publisher) publish(topic, payload string) {
	token := p.client.Publish(topic, 1, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			slog.Error("MQTT publish failed", "topic", topic, "error", err)
		}
	}()
}

func (p *Publisher) publishDiscovery(c mqtt.Client) {
	configs := discoveryConfigs(p.cfg)
	topics := maps.Keys(configs)
	sort.Strings(topics)
	for _, topic := range topics {
		token := c.Publish(topic, 1, true, configs[topic])
		token.Wait()
		if err := token.Error(); err != nil {
			slog.Error("Can't publish discovery config", "topic", topic, "error", err)
		}
	}
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
}

type discoverySensor struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic"`
	AvailabilityTopic string          `json:"availability_topic"`
	Unit              string          `json:"unit_of_measurement,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	PayloadOn         string          `json:"payload_on,omitempty"`
	PayloadOff        string          `json:"payload_off,omitempty"`
	Device            discoveryDevice `json:"device"`
}

// discoveryConfigs builds the retained Home Assistant discovery payloads,
// keyed by topic.
func discoveryConfigs(cfg config.MQTTConfig) map[string][]byte {
	device := discoveryDevice{
		Identifiers:  []string{cfg.DeviceID},
		Name:         "presenced",
		Model:        "ToF Proximity Display Controller",
		Manufacturer: "presenced",
	}

	out := make(map[string][]byte)

	sensors := []struct {
		id, name, unit, class string
	}{
		{"temperature", "Temperature", "°C", "temperature"},
		{"humidity", "Humidity", "%", "humidity"},
		{"pressure", "Pressure", "hPa", "pressure"},
		{"distance", "Distance", "mm", ""},
		{"lux", "Ambient Light", "lx", "illuminance"},
		{"display_brightness", "Display Brightness", "%", ""},
	}
	availability := cfg.TopicPrefix + "/availability"
	for _, s := range sensors {
		payload, _ := json.Marshal(discoverySensor{
			Name:              "Presence " + s.name,
			UniqueID:          cfg.DeviceID + "_" + s.id,
			StateTopic:        cfg.TopicPrefix + "/sensor/" + s.id,
			AvailabilityTopic: availability,
			Unit:              s.unit,
			DeviceClass:       s.class,
			Device:            device,
		})
		out[fmt.Sprintf("homeassistant/sensor/%s_%s/config", cfg.DeviceID, s.id)] = payload
	}

	proximity, _ := json.Marshal(discoverySensor{
		Name:              "Presence Occupancy",
		UniqueID:          cfg.DeviceID + "_proximity",
		StateTopic:        cfg.TopicPrefix + "/proximity/state",
		AvailabilityTopic: availability,
		DeviceClass:       "occupancy",
		PayloadOn:         "detected",
		PayloadOff:        "clear",
		Device:            device,
	})
	out[fmt.Sprintf("homeassistant/binary_sensor/%s_proximity/config", cfg.DeviceID)] = proximity

	return out
}
