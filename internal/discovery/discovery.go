// Package discovery answers LAN broadcast probes so role-view clients
// can find the server without configuration.
package discovery

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"go.uber.org/zap"
)

const probe = "DISCOVER_CAFE_SERVER"

type announcement struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
	Name string `json:"name"`
}

type Responder struct {
	port       int
	serverPort int
	name       string
	log        *zap.Logger
}

func New(port, serverPort int, name string, log *zap.Logger) *Responder {
	return &Responder{port: port, serverPort: serverPort, name: name, log: log}
}

// Run listens for discovery probes until ctx is cancelled.
func (r *Responder) Run(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: r.port})
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	r.log.Info("discovery responder listening", zap.Int("port", r.port))

	buf := make([]byte, 512)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if string(buf[:n]) != probe {
			continue
		}
		reply, err := json.Marshal(announcement{IP: localIP(), Port: r.serverPort, Name: r.name})
		if err != nil {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if _, err := conn.WriteToUDP(reply, addr); err != nil {
			r.log.Warn("discovery reply failed", zap.String("to", addr.String()), zap.Error(err))
			continue
		}
		r.log.Debug("discovery reply sent", zap.String("to", addr.String()))
	}
}

// localIP picks the first non-loopback IPv4 address, the address a LAN
// client should dial.
func localIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return "127.0.0.1"
}
