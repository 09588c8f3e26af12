package main

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// broker is the slice of the MQTT client a simulated shelf uses.
type broker interface {
	Publish(topic, payload string) error
	Subscribe(topic string, h func(topic string, payload []byte)) error
	Close()
}

type pahoBroker struct{ cli paho.Client }

func newMQTTClient(url, clientID string) (broker, error) {
	opts := paho.NewClientOptions().AddBroker(url).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &pahoBroker{cli: cli}, nil
}

func (b *pahoBroker) Publish(topic, payload string) error {
	token := b.cli.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout on %s", topic)
	}
	return token.Error()
}

func (b *pahoBroker) Subscribe(topic string, h func(string, []byte)) error {
	token := b.cli.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		h(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

func (b *pahoBroker) Close() { b.cli.Disconnect(250) }
