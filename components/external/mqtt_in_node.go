/*
 * Copyright 2024 The Wireflow Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package external

//Node configuration example:
//{
//        "id": "m1",
//        "type": "mqttIn",
//        "name": "sensor feed",
//        "configuration": {
//          "server": "tcp://127.0.0.1:1883",
//          "topic": "sensors/+/temperature",
//          "qos": 1
//        }
//  }
import (
	"context"
	"errors"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
	"github.com/wireflow/wireflow/utils/mqtt"
)

func init() {
	Registry.Add(&MqttInNode{})
}

// MqttInNodeConfiguration node configuration
type MqttInNodeConfiguration struct {
	//Server is the broker address.
	Server string
	//Topic is the subscription filter, wildcards allowed.
	Topic    string
	Username string
	Password string
	QOS      uint8
	//ConnectTimeoutMs bounds the initial broker connection.
	ConnectTimeoutMs int
	CAFile           string
	CertFile         string
	CertKeyFile      string
}

// MqttInNode is a source: every message arriving on the subscribed topic is
// delivered into the flow with the broker topic and raw payload bytes.
type MqttInNode struct {
	Config MqttInNodeConfiguration

	client *mqtt.Client
}

// Type component type
func (x *MqttInNode) Type() string {
	return "mqttIn"
}

func (x *MqttInNode) New() types.Node {
	return &MqttInNode{Config: MqttInNodeConfiguration{
		Server:           "tcp://127.0.0.1:1883",
		ConnectTimeoutMs: 10000,
	}}
}

// Init validates the subscription; the connection happens on flow start.
func (x *MqttInNode) Init(_ types.Config, configuration types.Configuration) error {
	if err := base.DecodeConfig(configuration, &x.Config); err != nil {
		return err
	}
	if x.Config.Topic == "" {
		return errors.New("mqttIn requires a topic")
	}
	if x.Config.ConnectTimeoutMs <= 0 {
		x.Config.ConnectTimeoutMs = 10000
	}
	return nil
}

// OnStart connects to the broker and subscribes.
func (x *MqttInNode) OnStart(ctx types.NodeContext) error {
	timeout := time.Duration(x.Config.ConnectTimeoutMs) * time.Millisecond
	connectCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mqtt.NewClient(connectCtx, mqtt.Config{
		Server:      x.Config.Server,
		Username:    x.Config.Username,
		Password:    x.Config.Password,
		QOS:         x.Config.QOS,
		CAFile:      x.Config.CAFile,
		CertFile:    x.Config.CertFile,
		CertKeyFile: x.Config.CertKeyFile,
	})
	if err != nil {
		return err
	}
	x.client = client
	client.RegisterHandler(mqtt.Handler{
		Topic: x.Config.Topic,
		Qos:   x.Config.QOS,
		Handle: func(c paho.Client, data paho.Message) {
			out := ctx.NewMessage(data.Payload())
			out.Topic = data.Topic()
			ctx.Send(0, out)
		},
	})
	return nil
}

// OnMsg publishes nothing; an inbound wire on a source is ignored.
func (x *MqttInNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	ctx.Done(msg)
}

// OnClose disconnects from the broker.
func (x *MqttInNode) OnClose(_ bool) {
	if x.client != nil {
		_ = x.client.Close()
		x.client = nil
	}
}
