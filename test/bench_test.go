package test

import (
	"context"
	"testing"

	"rpcclient/client"
	"rpcclient/codec"
	"rpcclient/internal/rpctest"
	"rpcclient/message"
)

func setupServerAndClient(b *testing.B, p codec.Protocol, key string) *client.Client {
	svr := rpctest.NewServer(key)
	b.Cleanup(svr.Close)
	if err := svr.Register(&Arith{}); err != nil {
		b.Fatal(err)
	}
	opts := []client.Option{client.WithProtocol(p)}
	if key != "" {
		opts = append(opts, client.WithEncryption(key))
	}
	cli, err := client.NewClient(svr.URL, opts...)
	if err != nil {
		b.Fatal(err)
	}
	return cli
}

func benchmarkCall(b *testing.B, p codec.Protocol, key string) {
	cli := setupServerAndClient(b, p, key)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cli.Call(context.Background(), "Arith.Add", 1, 2); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCallXML(b *testing.B) { benchmarkCall(b, codec.ProtocolXML, "") }
func BenchmarkCallJSON(b *testing.B) { benchmarkCall(b, codec.ProtocolJSON, "") }
func BenchmarkCallEncrypted(b *testing.B) { benchmarkCall(b, codec.ProtocolJSON, "benchmark") }

// Calls on one client are serialized; each goroutine gets its own client.
func BenchmarkConcurrentCall(b *testing.B) {
	svr := rpctest.NewServer("")
	b.Cleanup(svr.Close)
	if err := svr.Register(&Arith{}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		cli, err := client.NewClient(svr.URL, client.WithProtocol(codec.ProtocolJSON))
		if err != nil {
			b.Error(err)
			return
		}
		for pb.Next() {
			if _, err := cli.Call(context.Background(), "Arith.Add", 1, 2); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func benchmarkEncode(b *testing.B, p codec.Processor) {
	var reqs []*message.Request
	for i := 0; i < 10; i++ {
		r, err := message.New("Arith.Add", []any{i, i + 1, "label", map[string]any{"k": i}})
		if err != nil {
			b.Fatal(err)
		}
		reqs = append(reqs, r)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Encode(reqs); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeXMLMulticall(b *testing.B) { benchmarkEncode(b, codec.GetProcessor(codec.ProtocolXML, "")) }
func BenchmarkEncodeJSONBatch(b *testing.B) { benchmarkEncode(b, codec.GetProcessor(codec.ProtocolJSON, "")) }
