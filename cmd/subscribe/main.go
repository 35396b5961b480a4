package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	pb "ddbstream/api/pb"
)

func main() {
	var addr string

	rootCmd := &cobra.Command{
		Use:          "subscribe",
		Short:        "Print every event streamed by a ddbstream server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			defer conn.Close()

			return tail(ctx, pb.NewDdbStreamClient(conn), cmd.OutOrStdout())
		},
	}
	rootCmd.Flags().StringVar(&addr, "addr", "localhost:50051", "server address")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// tail prints one line per event until the stream ends or ctx is done.
func tail(ctx context.Context, client pb.DdbStreamClient, out io.Writer) error {
	stream, err := client.Subscribe(ctx, &pb.SubscribeRequest{})
	if err != nil {
		return err
	}
	for {
		msg, err := stream.Recv()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), status.Code(err) == codes.Canceled && ctx.Err() != nil:
			return nil
		default:
			return err
		}
		if msg.GetData() == "" {
			fmt.Fprintln(out, msg.GetType())
			continue
		}
		fmt.Fprintf(out, "%s %s\n", msg.GetType(), msg.GetData())
	}
}
