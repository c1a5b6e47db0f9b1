package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rpcclient/client"
	"rpcclient/config"
	"rpcclient/message"
)

var (
	callCmd = &cobra.Command{
		Use:   "call METHOD [PARAM...]",
		Short: "Call one remote method",
		Long: `Call one remote method and print its result as JSON.

Every PARAM is parsed as a JSON literal (42, true, [1,2], {"a":1}, "text").
Anything that is not valid JSON is sent as a string.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCall,
	}

	batchCmd = &cobra.Command{
		Use:   "batch FILE",
		Short: "Send several calls in one exchange",
		Long: `Send the calls listed in FILE ("-" for stdin) as one multicall or batch.

FILE holds a JSON array of calls:

  [{"method": "echo", "params": ["hello"]},
   {"method": "log", "params": ["x"], "notification": true},
   {"method": "add", "params": [1, 2], "id": 7}]`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of rpcclient",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rpcclient v%s\n", Version)
		},
	}
)

func init() {
	callCmd.Flags().Bool("notify", false, "send as a JSON-RPC notification (no response expected)")
	callCmd.Flags().String("id", "", "explicit JSON-RPC id (default: generated)")
}

// batchEntry is one call of a batch file.
type batchEntry struct {
	Method       string            `json:"method"`
	Params       []json.RawMessage `json:"params"`
	ID           json.RawMessage   `json:"id,omitempty"`
	Notification bool              `json:"notification,omitempty"`
	Types        map[string]string `json:"special_types,omitempty"`
}

// session is a configured client plus what must happen when it is done.
type session struct {
	client  *client.Client
	logger  *zap.Logger
	metrics bool
}

func newSession(cmd *cobra.Command) (*session, error) {
	v, err := config.New(cmd)
	if err != nil {
		return nil, err
	}
	conf, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger, err := conf.NewLogger()
	if err != nil {
		return nil, err
	}
	c, err := client.NewClient(conf.Endpoint, conf.ClientOptions(logger)...)
	if err != nil {
		return nil, err
	}
	return &session{client: c, logger: logger, metrics: conf.Metrics}, nil
}

func (s *session) send(cmd *cobra.Command) error {
	defer func() {
		_ = s.logger.Sync()
		if s.metrics {
			metrics.WritePrometheus(cmd.ErrOrStderr(), false)
		}
	}()
	result, err := s.client.Send(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func runCall(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	params := make([]any, 0, len(args)-1)
	for _, arg := range args[1:] {
		params = append(params, parseParam([]byte(arg)))
	}
	var opts []message.Option
	if notify, _ := cmd.Flags().GetBool("notify"); notify {
		opts = append(opts, message.AsNotification())
	} else if id, _ := cmd.Flags().GetString("id"); id != "" {
		opts = append(opts, message.WithID(parseParam([]byte(id))))
	}

	r, err := message.New(args[0], params, opts...)
	if err != nil {
		return err
	}
	if err := s.client.AddRequest(r); err != nil {
		return err
	}
	return s.send(cmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}
	reqs, err := parseBatch(data)
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if err := s.client.AddRequest(r); err != nil {
			return err
		}
	}
	return s.send(cmd)
}

func parseBatch(data []byte) ([]*message.Request, error) {
	var entries []batchEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("batch file: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("batch file: no call")
	}

	reqs := make([]*message.Request, 0, len(entries))
	for i, e := range entries {
		params := make([]any, 0, len(e.Params))
		for _, p := range e.Params {
			params = append(params, parseParam(p))
		}
		var opts []message.Option
		switch {
		case e.Notification:
			opts = append(opts, message.AsNotification())
		case len(e.ID) > 0:
			opts = append(opts, message.WithID(parseParam(e.ID)))
		}
		r, err := message.New(e.Method, params, opts...)
		if err != nil {
			return nil, fmt.Errorf("batch call %d: %w", i, err)
		}
		for value, tag := range e.Types {
			if err := r.SetSpecialType(value, message.SpecialType(tag)); err != nil {
				return nil, fmt.Errorf("batch call %d: %w", i, err)
			}
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}

// parseParam decodes a JSON literal, keeping integers as int64. Invalid JSON
// is returned as a string.
func parseParam(raw []byte) any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return string(raw)
	}
	return numbers(v)
}

func numbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = numbers(x[i])
		}
	case map[string]any:
		for k := range x {
			x[k] = numbers(x[k])
		}
	}
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
