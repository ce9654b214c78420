package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/reliwire-dev/reliwire/pkg/processor"
	"github.com/reliwire-dev/reliwire/pkg/transport"
)

func callCmd() *cobra.Command {
	var (
		url        string
		note       string
		request    string
		withAck    bool
		timeout    time.Duration
		ackTimeout time.Duration
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Send a note or request to a server and print the outcome",
		Long: `Dial a server, send one note or one request and print the terminal
outcome. Payloads that parse as JSON are sent verbatim; anything else
is sent as a JSON string.`,
		Example: `  reliwire call --note '{"hello":"world"}' --ack
  reliwire call --request '{"a":2,"b":3}' --timeout 5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (note == "") == (request == "") {
				return fmt.Errorf("exactly one of --note or --request is required")
			}
			return runCall(callParams{
				url:        url,
				note:       note,
				request:    request,
				withAck:    withAck,
				timeout:    timeout,
				ackTimeout: ackTimeout,
				verbose:    verbose,
			})
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "ws://localhost:8080/ws", "Server WebSocket URL")
	cmd.Flags().StringVar(&note, "note", "", "Send a note with this payload")
	cmd.Flags().StringVar(&request, "request", "", "Send a request with this payload")
	cmd.Flags().BoolVar(&withAck, "ack", false, "Request an acknowledgement")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	cmd.Flags().DurationVar(&ackTimeout, "ack-timeout", 0, "Ack timeout (0: default/none)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log engine diagnostics")

	return cmd
}

type callParams struct {
	url        string
	note       string
	request    string
	withAck    bool
	timeout    time.Duration
	ackTimeout time.Duration
	verbose    bool
}

func runCall(params callParams) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !params.verbose {
		log = log.Level(zerolog.ErrorLevel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := transport.Dial(ctx, params.url,
		transport.WithLogger(processor.NewZerologLogger(log)))
	if err != nil {
		return fmt.Errorf("dial %s: %w", params.url, err)
	}

	cfg := processor.DefaultConfig()
	cfg.Logger = processor.NewZerologLogger(log)
	p := processor.New(conn, cfg)
	go conn.Run(p)
	p.Open()
	defer p.Close()

	if params.note != "" {
		return sendCallNote(p, params)
	}
	return sendCallRequest(p, params)
}

func sendCallNote(p *processor.Processor, params callParams) error {
	payload := jsonPayload(params.note)

	if !params.withAck {
		if err := p.SendNote(payload, processor.NoteOptions{}, nil); err != nil {
			return err
		}
		fmt.Println("note sent (no ack requested)")
		return nil
	}

	acks := make(chan processor.Code, 1)
	err := p.SendNote(payload,
		processor.NoteOptions{SendAck: true, AckTimeout: params.ackTimeout},
		func(code processor.Code) { acks <- code })
	if err != nil {
		return err
	}

	code := <-acks
	fmt.Printf("note ack: code %s\n", code)
	if code != processor.AckArrived {
		return fmt.Errorf("note not acknowledged (code %s)", code)
	}
	return nil
}

func sendCallRequest(p *processor.Processor, params callParams) error {
	payload := jsonPayload(params.request)

	type outcome struct {
		code    processor.Code
		payload json.RawMessage
	}
	results := make(chan outcome, 1)

	var ack processor.AckFunc
	if params.withAck {
		ack = func(code processor.Code) {
			fmt.Printf("request ack: code %s\n", code)
		}
	}

	err := p.SendRequest(payload,
		func(resp json.RawMessage) { results <- outcome{code: 0, payload: resp} },
		func(code processor.Code, resp json.RawMessage) { results <- outcome{code: code, payload: resp} },
		processor.RequestOptions{
			RequestTimeout: params.timeout,
			SendAck:        params.withAck,
			AckTimeout:     params.ackTimeout,
		},
		ack)
	if err != nil {
		return err
	}

	res := <-results
	if res.code == 0 {
		fmt.Printf("response: %s\n", res.payload)
		return nil
	}
	if len(res.payload) > 0 {
		fmt.Printf("request failed: code %s, payload %s\n", res.code, res.payload)
	} else {
		fmt.Printf("request failed: code %s\n", res.code)
	}
	return fmt.Errorf("request failed with code %s", res.code)
}

// jsonPayload passes valid JSON through verbatim and wraps everything
// else as a JSON string.
func jsonPayload(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	quoted, _ := json.Marshal(s)
	return quoted
}
