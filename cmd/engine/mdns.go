package main

import (
	"context"
	"net"

	"github.com/pion/mdns/v2"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// startMDNSServer answers queries for localName until ctx is done
func startMDNSServer(ctx context.Context, localName string, logger *zap.Logger) {
	logger = logger.Named("mdns")

	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		logger.Warn("Failed to resolve UDP4 address for mDNS", zap.Error(err))
		return
	}
	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		logger.Warn("Failed to resolve UDP6 address for mDNS", zap.Error(err))
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		logger.Warn("Failed to listen on UDP4 for mDNS", zap.Error(err))
		return
	}
	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		l4.Close()
		logger.Warn("Failed to listen on UDP6 for mDNS", zap.Error(err))
		return
	}

	conn, err := mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		logger.Warn("Failed to start mDNS server", zap.Error(err))
		return
	}
	logger.Info("Advertising hub", zap.String("name", localName))

	<-ctx.Done()
	if err := conn.Close(); err != nil {
		logger.Debug("mDNS close", zap.Error(err))
	}
}
