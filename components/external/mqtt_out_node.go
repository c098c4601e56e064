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
//        "id": "m2",
//        "type": "mqttOut",
//        "name": "publish alerts",
//        "configuration": {
//          "server": "tcp://127.0.0.1:1883",
//          "topic": "alerts"
//        }
//  }
//With topic empty, the message's own topic is used.
import (
	"context"
	"errors"
	"time"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
	"github.com/wireflow/wireflow/utils/mqtt"
	"github.com/wireflow/wireflow/utils/str"
)

func init() {
	Registry.Add(&MqttOutNode{})
}

// MqttOutNodeConfiguration node configuration
type MqttOutNodeConfiguration struct {
	//Server is the broker address.
	Server string
	//Topic publishes every message to this topic. Empty falls back to the
	//message's own topic.
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

// MqttOutNode publishes each inbound message's payload to the broker and
// passes the message through on success.
type MqttOutNode struct {
	Config MqttOutNodeConfiguration

	client *mqtt.Client
}

// Type component type
func (x *MqttOutNode) Type() string {
	return "mqttOut"
}

func (x *MqttOutNode) New() types.Node {
	return &MqttOutNode{Config: MqttOutNodeConfiguration{
		Server:           "tcp://127.0.0.1:1883",
		ConnectTimeoutMs: 10000,
	}}
}

// Init validates the configuration; the connection happens on flow start.
func (x *MqttOutNode) Init(_ types.Config, configuration types.Configuration) error {
	if err := base.DecodeConfig(configuration, &x.Config); err != nil {
		return err
	}
	if x.Config.Server == "" {
		return errors.New("mqttOut requires a server")
	}
	if x.Config.ConnectTimeoutMs <= 0 {
		x.Config.ConnectTimeoutMs = 10000
	}
	return nil
}

// OnStart connects to the broker.
func (x *MqttOutNode) OnStart(_ types.NodeContext) error {
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
	return nil
}

// OnMsg publishes the payload.
func (x *MqttOutNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	if x.client == nil {
		ctx.ReportError(base.ErrClientNotInit, &msg)
		return
	}
	topic := x.Config.Topic
	if topic == "" {
		topic = msg.Topic
	}
	if topic == "" {
		ctx.ReportError(errors.New("message has no topic to publish to"), &msg)
		return
	}
	var data []byte
	if b, ok := msg.Payload.([]byte); ok {
		data = b
	} else {
		data = []byte(str.ToString(msg.Payload))
	}
	if err := x.client.Publish(topic, x.Config.QOS, data); err != nil {
		ctx.ReportError(err, &msg)
		return
	}
	ctx.Send(0, msg)
	ctx.Done(msg)
}

// OnClose disconnects from the broker.
func (x *MqttOutNode) OnClose(_ bool) {
	if x.client != nil {
		_ = x.client.Close()
		x.client = nil
	}
}
