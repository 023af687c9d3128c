package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-i2p/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-stcp/stcp/lib/config"
	"github.com/go-stcp/stcp/lib/metrics"
	"github.com/go-stcp/stcp/lib/stcp"
	"github.com/go-stcp/stcp/lib/util"
	"github.com/go-stcp/stcp/lib/util/signals"
	"github.com/go-stcp/stcp/lib/vnet"
)

var (
	serveOverlayFlag bool
	metricsAddr      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an echo server",
	Long: `Listen for secure connections and echo every payload back.

With --overlay every connection is bridged by a forwarder into a local
"echo" node, which replies through the same forwarder.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := interruptContext(cmd.Context())
		defer cancel()

		signals.RegisterReloadHandler(func() {
			if err := viper.ReadInConfig(); err != nil {
				log.WithError(err).Warn("Could not reload configuration")
				return
			}
			log.Info("Configuration reloaded; applies to new connections")
		})
		go signals.Handle(ctx)

		return serve(ctx, func(addr net.Addr) {
			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", addr)
		})
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "address to listen on")
	serveCmd.Flags().BoolVar(&serveOverlayFlag, "overlay", false, "route connections through a local echo node")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics", "", "serve prometheus metrics on this address")
	bind(serveCmd.Flags().Lookup("listen"), config.KeyListenAddress)
	rootCmd.AddCommand(serveCmd)
}

// serve accepts connections until ctx is done. ready is called once the
// listener is bound.
func serve(ctx context.Context, ready func(net.Addr)) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	// Everything registered below closes, newest first, once ctx is done.
	context.AfterFunc(ctx, func() {
		if err := util.CloseAll(); err != nil {
			log.WithError(err).Warn("Errors while closing")
		}
	})

	cfg := config.CurrentConfig()
	c, err := cfg.Cipher.NewCipher()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		util.RegisterCloser(srv)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	ln, err := stcp.Listen(ctx, cfg.Transport.ListenAddress, c, cfg.Transport.SocketOptions(m)...)
	if err != nil {
		return err
	}
	util.RegisterCloser(ln)
	if ready != nil {
		ready(ln.Addr())
	}

	var nodes *vnet.Registry
	var echo *vnet.LocalNode
	if serveOverlayFlag {
		nodes = vnet.NewRegistry(cfg.VNet.MaxNodes)
		if echo, err = nodes.NewLocalNode("echo"); err != nil {
			return err
		}
		util.RegisterCloser(echo)
		go func() {
			if err := echoNode(ctx, echo); err != nil {
				log.WithError(err).Error("Echo node stopped")
			}
		}()
	}

	for {
		s, remote, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return oops.Wrapf(err, "serving %s", ln.Addr())
		}
		stop := context.AfterFunc(ctx, func() { s.Close() })
		log.WithFields(logger.Fields{
			"at":     "cmd.serve",
			"remote": remote.String(),
		}).Info("connection_accepted")

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer stop()
			var err error
			if echo != nil {
				err = serveOverlay(nodes, echo, s, m)
			} else {
				err = echoSocket(ctx, s)
				s.Close()
			}
			if err != nil {
				log.WithError(err).WithField("remote", remote.String()).Warn("Connection ended with error")
			}
		}()
	}
}
