// Command mdc-client is an interactive REPL over the MDC client engine,
// using github.com/peterh/liner for line editing/history (grounded on the
// interactive console dependency found in the example pack).
package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	log "github.com/sirupsen/logrus"

	"github.com/pdsmart/mdc/pkg/client"
	"github.com/pdsmart/mdc/pkg/protocol"

	_ "github.com/pdsmart/mdc/pkg/compress/lz4"
	_ "github.com/pdsmart/mdc/pkg/transport/tcp"
)

func main() {
	addr := flag.String("addr", "localhost:7890", "daemon address")
	kindFlag := flag.String("kind", "C", "service kind tag (S/O/F/J/C/A)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	c, err := client.New("tcp", client.WithLogger(log.StandardLogger()))
	if err != nil {
		log.Fatalf("[MDC-CLIENT] creating client: %v", err)
	}
	if err := c.Start(); err != nil {
		log.Fatalf("[MDC-CLIENT] starting client: %v", err)
	}
	defer c.End()

	sink := func(channelID uint32, payload []byte) {
		fmt.Printf("\n[data] %s\n", string(payload))
	}

	channelID, err := c.CreateService(*addr, client.Credentials{Kind: []byte(*kindFlag)[0]}, sink)
	if err != nil {
		log.Fatalf("[MDC-CLIENT] create service: %v", err)
	}
	fmt.Printf("connected, channel x%x\n", channelID)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("mdc> ")
		if err == io.EOF || err == liner.ErrPromptAborted {
			break
		}
		if err != nil {
			log.Warnf("[MDC-CLIENT] prompt: %v", err)
			break
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if err := c.SendRequest(channelID, []byte(input)); err != nil {
			fmt.Printf("send-request failed: %v\n", err)
			continue
		}
		if err := c.GetResult(channelID); err != nil {
			if nerr, ok := err.(*protocol.NakError); ok {
				fmt.Printf("request rejected: %s\n", nerr.Text)
			} else {
				fmt.Printf("request failed: %v\n", err)
			}
		}
	}

	if err := c.CloseService(channelID); err != nil {
		log.Warnf("[MDC-CLIENT] close service: %v", err)
	}
}
