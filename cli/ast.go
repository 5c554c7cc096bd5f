// Copyright (c) 2024-2025, The esplink Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package cli

import (
	"github.com/alecthomas/participle"
)

// noinspection GoStructTag
type Command struct {
	Active   *ActiveCmd   `  @@` //nolint
	Channel  *ChannelCmd  `| @@` //nolint
	Exit     *ExitCmd     `| @@` //nolint
	Help     *HelpCmd     `| @@` //nolint
	LogLevel *LogLevelCmd `| @@` //nolint
	Peer     *PeerCmd     `| @@` //nolint
	Peers    *PeersCmd    `| @@` //nolint
	Ping     *PingCmd     `| @@` //nolint
	Recv     *RecvCmd     `| @@` //nolint
	Scan     *ScanCmd     `| @@` //nolint
	Send     *SendCmd     `| @@` //nolint
	Status   *StatusCmd   `| @@` //nolint
}

// noinspection GoStructTag
type ActiveCmd struct {
	Cmd  struct{} `"active"`          //nolint
	Mode string   `[ @("on"|"off") ]` //nolint
}

// noinspection GoStructTag
type ChannelCmd struct {
	Cmd struct{} `"channel"` //nolint
	Num *int     `[ @Int ]`  //nolint
}

// noinspection GoStructTag
type ExitCmd struct {
	Cmd struct{} `"exit"` //nolint
}

// noinspection GoStructTag
type HelpCmd struct {
	Cmd       struct{} `"help"`       //nolint
	HelpTopic string   `[ (@Ident) ]` //nolint
}

// noinspection GoStructTag
type LogLevelCmd struct {
	Cmd   struct{} `"loglevel"`                                         //nolint
	Level string   `[ @("trace"|"debug"|"info"|"warn"|"error"|"off") ]` //nolint
}

// noinspection GoStructTag
type PeerCmd struct {
	Cmd  struct{} `"peer"`      //nolint
	Addr *string  `[ @String ]` //nolint
}

// noinspection GoStructTag
type PeersCmd struct {
	Cmd struct{} `"peers"` //nolint
}

// noinspection GoStructTag
type PingCmd struct {
	Cmd    struct{} `"ping"`           //nolint
	First  *string  `[ @String ]`      //nolint
	Second *string  `[ @String ]`      //nolint
	Count  *int     `[ "count" @Int ]` //nolint
}

// noinspection GoStructTag
type RecvCmd struct {
	Cmd       struct{} `"recv"`   //nolint
	TimeoutMs *int     `[ @Int ]` //nolint
}

// noinspection GoStructTag
type ScanCmd struct {
	Cmd       struct{} `"scan"`                   //nolint
	Addr      *string  `[ @String ]`              //nolint
	Channels  []int    `[ "channels" ( @Int )+ ]` //nolint
	TimeoutMs *int     `[ "timeout" @Int ]`       //nolint
	All       *AllFlag `[ @@ ]`                   //nolint
}

// noinspection GoStructTag
type AllFlag struct {
	Dummy struct{} `"all"` //nolint
}

// noinspection GoStructTag
type SendCmd struct {
	Cmd    struct{} `"send"`      //nolint
	First  string   `@String`     //nolint
	Second *string  `[ @String ]` //nolint
}

// noinspection GoStructTag
type StatusCmd struct {
	Cmd struct{} `"status"` //nolint
}

var (
	commandParser = participle.MustBuild(&Command{})
)

func ParseBytes(b []byte, cmd *Command) error {
	err := commandParser.ParseBytes(b, cmd)
	return err
}
