// Package mqttbridge mirrors one thermostat onto an MQTT broker.
//
// Every snapshot the coordinator produces is published to <base>/state and
// the device availability to <base>/availability. Commands arrive on
// <base>/set/{target,hold,mode,fan} as {"value": ...} and go through the
// thermostat control functions, which schedule the debounced refresh.
package mqttbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andreweacott/radiotherm-coordinator/pkg/coordinator"
	"github.com/andreweacott/radiotherm-coordinator/pkg/logger"
	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm"
	"github.com/andreweacott/radiotherm-coordinator/pkg/thermostat"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	availabilityOnline  = "online"
	availabilityOffline = "offline"

	defaultCommandTimeout = 10 * time.Second
)

type Config struct {
	BrokerURL string
	ClientID  string
	// BaseTopic defaults to <TopicPrefix>/<device name>
	BaseTopic   string
	TopicPrefix string

	QoS    byte
	Retain bool

	Username string
	Password string

	CommandTimeout time.Duration
}

// Bridge publishes thermostat state and dispatches MQTT commands.
type Bridge struct {
	rec *thermostat.DeviceRecord
	cfg Config
	log *logger.Entry

	newClient func(*mqtt.ClientOptions) mqtt.Client
	client    mqtt.Client

	// last published availability, touched only by the Run goroutine
	available *bool
}

// New validates cfg and fills in defaults.
func New(rec *thermostat.DeviceRecord, cfg Config, log *logger.Logger) (*Bridge, error) {
	if rec == nil {
		return nil, errors.New("mqtt: device record is required")
	}
	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "radiotherm"
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = strings.TrimRight(cfg.TopicPrefix, "/") + "/" + topicSafe(rec.InitData.Name)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "radiotherm-" + topicSafe(rec.InitData.Name)
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Bridge{
		rec:       rec,
		cfg:       cfg,
		log:       log.WithComponent("mqtt").With("device", rec.InitData.Name, "broker", cfg.BrokerURL),
		newClient: mqtt.NewClient,
	}, nil
}

// Run connects to the broker and publishes until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.BrokerURL).
		SetClientID(b.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2*time.Second).
		SetWill(b.topic("availability"), availabilityOffline, b.cfg.QoS, true)

	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		token := cl.Subscribe(b.topic("set/+"), b.cfg.QoS, b.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			b.log.Warn("subscribe failed", "error", err)
		}
	}

	b.client = b.newClient(opts)
	// with connect retry the token only completes once the broker answers
	tok := b.client.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		b.client.Disconnect(0)
		return nil
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	b.log.Info("connected", "base_topic", b.cfg.BaseTopic)

	updates := b.rec.Coordinator.Subscribe()
	defer b.rec.Coordinator.Unsubscribe(updates)

	if state, ok := b.rec.State(); ok {
		b.publishState(state)
	}

	for {
		select {
		case <-ctx.Done():
			b.client.Publish(b.topic("availability"), b.cfg.QoS, true, availabilityOffline).Wait()
			b.client.Disconnect(250)
			return nil
		case n := <-updates:
			b.handleNotification(n)
		}
	}
}

func (b *Bridge) handleNotification(n coordinator.Notification[radiotherm.Update]) {
	if !n.Success {
		b.publishAvailability(false)
		return
	}
	b.publishState(b.rec.StateFrom(n.Data, true))
}

func (b *Bridge) publishState(state thermostat.State) {
	payload, err := json.Marshal(state)
	if err != nil {
		b.log.Error("failed to encode state", "error", err)
		return
	}
	b.client.Publish(b.topic("state"), b.cfg.QoS, b.cfg.Retain, payload)
	b.publishAvailability(state.Available)
}

func (b *Bridge) publishAvailability(available bool) {
	if b.available != nil && *b.available == available {
		return
	}
	b.available = &available

	payload := availabilityOffline
	if available {
		payload = availabilityOnline
	}
	b.client.Publish(b.topic("availability"), b.cfg.QoS, true, payload)
}

// Command payload format: {"value": ...}
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func (b *Bridge) onMessage(_ mqtt.Client, msg mqtt.Message) {
	// topic format: <base>/set/<field>
	prefix := b.topic("set/")
	if !strings.HasPrefix(msg.Topic(), prefix) {
		return
	}
	field := strings.TrimPrefix(msg.Topic(), prefix)

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.CommandTimeout)
	defer cancel()

	if err := b.dispatch(ctx, field, msg.Payload()); err != nil {
		b.log.Warn("command failed", "command", field, "error", err)
		return
	}
	b.log.Debug("command applied", "command", field)
}

func (b *Bridge) dispatch(ctx context.Context, field string, payload []byte) error {
	switch field {
	case "target":
		v, err := decodeValueStrict[float64](payload)
		if err != nil {
			return err
		}
		return thermostat.SetTargetTemperature(ctx, b.rec, v)

	case "hold":
		v, err := decodeValueStrict[bool](payload)
		if err != nil {
			return err
		}
		return thermostat.SetHold(ctx, b.rec, v)

	case "mode":
		s, err := decodeValueStrict[string](payload)
		if err != nil {
			return err
		}
		mode, err := radiotherm.ParseMode(s)
		if err != nil {
			return err
		}
		return thermostat.SetMode(ctx, b.rec, mode)

	case "fan":
		s, err := decodeValueStrict[string](payload)
		if err != nil {
			return err
		}
		fan, err := radiotherm.ParseFanMode(s)
		if err != nil {
			return err
		}
		return thermostat.SetFanMode(ctx, b.rec, fan)

	default:
		return fmt.Errorf("unknown command %q", field)
	}
}

func (b *Bridge) topic(suffix string) string {
	return strings.TrimRight(b.cfg.BaseTopic, "/") + "/" + suffix
}

func topicSafe(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "/", "_", "+", "_", "#", "_").Replace(name)
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}
