package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/telemetry_node/internal/config"
	"github.com/relabs-tech/telemetry_node/internal/telemetry"
)

// FormatPacket renders one packet as a console line. Simulated groups are
// marked with '*'.
func FormatPacket(p telemetry.Packet, v telemetry.Variant) string {
	env := flag(p.Status, telemetry.StatusEnvironment)
	mot := flag(p.Status, telemetry.StatusMotion)
	pos := flag(p.Status, telemetry.StatusPosition)
	return fmt.Sprintf(
		"[%-11s] ts=%d status=0x%02X  T%s%6.2f  P%s%7.2f  ALT=%8.1f  POS%s%9.5f,%10.5f  A%s%7.2f %7.2f %7.2f  G%s%8.2f %8.2f %8.2f",
		v, p.Timestamp, p.Status,
		env, p.Temperature, env, p.Pressure, p.Altitude,
		pos, p.Latitude, p.Longitude,
		mot, p.AccelX, p.AccelY, p.AccelZ,
		mot, p.GyroX, p.GyroY, p.GyroZ,
	)
}

// RunConsoleMQTT subscribes to the binary telemetry topic and prints every
// decoded packet to w until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, w io.Writer) error {
	if cfg.MQTTBroker == "" {
		return errors.New("console: MQTT_BROKER is not set")
	}
	order, err := telemetry.ParseByteOrder(cfg.PacketByteOrder)
	if err != nil {
		return err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-console")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Infof("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicTelemetry, 0, func(_ mqtt.Client, msg mqtt.Message) {
		p, v, err := telemetry.Decode(msg.Payload(), order)
		if err != nil {
			log.Warnf("console: %v", err)
			return
		}
		fmt.Fprintln(w, FormatPacket(p, v))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Infof("console: subscribed to %s", cfg.TopicTelemetry)

	<-ctx.Done()
	return nil
}
