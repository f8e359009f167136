package app

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_lorawan/internal/config"
	"github.com/relabs-tech/gps_lorawan/internal/record"
)

// formatUplink renders one uplink payload for the console.
func formatUplink(topic string, payload []byte) (string, error) {
	d, err := record.Decode(payload)
	if err != nil {
		return "", err
	}
	node := topic[strings.LastIndex(topic, "/")+1:]
	return fmt.Sprintf("[UPLINK %s] %s", node, d), nil
}

// RunUplinkConsole subscribes to every tracker uplink on the broker and
// prints the decoded records until SIGINT or SIGTERM.
func RunUplinkConsole() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("console: MQTT_BROKER is not set")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Infof("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	topic := strings.TrimSuffix(cfg.TopicUplink, "/") + "/#"
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		line, err := formatUplink(msg.Topic(), msg.Payload())
		if err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Warn("console: undecodable uplink")
			return
		}
		fmt.Println(line)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Infof("console: subscribed to %s", topic)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("console: shutting down")
	client.Disconnect(250)
	return nil
}
