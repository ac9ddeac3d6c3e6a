// Copyright Project Contour Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command xds-watch is a small CLI demonstrating the xdsclient package: it
// dials a management server and prints each update for a single named
// resource as it arrives, one subcommand per resource kind.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sirupsen/logrus"

	"github.com/projectcontour/xdsclient"
	"github.com/projectcontour/xdsclient/internal/xdsclient/transport"
	"github.com/projectcontour/xdsclient/internal/xdsclient/xdsresource"
)

func main() {
	app := kingpin.New("xds-watch", "Watch a single xDS resource on a management server and print its updates.")

	server := app.Flag("server", "Management server address, host:port.").Default("127.0.0.1:18000").String()
	node := app.Flag("node-id", "Node ID to present to the management server.").Default(transport.HostnameOrDefault("xds-watch")).String()
	caFile := app.Flag("ca-file", "PEM CA bundle; enables TLS when set.").String()
	certFile := app.Flag("cert-file", "PEM client certificate; enables mTLS together with --key-file.").String()
	keyFile := app.Flag("key-file", "PEM client key; enables mTLS together with --cert-file.").String()
	domain := app.Flag("domain", "Expected server name in the management server's certificate.").String()

	listener := app.Command("listener", "Watch a Listener.")
	listenerName := listener.Arg("name", "Listener name.").Required().String()

	route := app.Command("route", "Watch a RouteConfiguration.")
	routeName := route.Arg("name", "RouteConfiguration name.").Required().String()

	cluster := app.Command("cluster", "Watch a Cluster.")
	clusterName := cluster.Arg("name", "Cluster name.").Required().String()

	endpoint := app.Command("endpoint", "Watch a ClusterLoadAssignment.")
	endpointName := endpoint.Arg("name", "Cluster name to load assignment lookup.").Required().String()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	log := logrus.StandardLogger()

	var tls *xdsclient.TLSConfig
	if *caFile != "" || *certFile != "" || *keyFile != "" {
		tls = &xdsclient.TLSConfig{DomainName: *domain}
		var err error
		if tls.CACertPEM, err = readFileOrExit(log, *caFile); err != nil {
			return
		}
		if tls.ClientCertPEM, err = readFileOrExit(log, *certFile); err != nil {
			return
		}
		if tls.ClientKeyPEM, err = readFileOrExit(log, *keyFile); err != nil {
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	c, err := xdsclient.New(ctx, xdsclient.Config{
		ServerURI: *server,
		NodeID:    *node,
		TLS:       tls,
		Log:       log,
	})
	if err != nil {
		log.WithError(err).Fatal("connecting to management server")
	}
	defer c.Close()

	switch cmd {
	case listener.FullCommand():
		w, err := xdsclient.Watch[xdsresource.Listener](c, *listenerName)
		watch(ctx, log, w, err)
	case route.FullCommand():
		w, err := xdsclient.Watch[xdsresource.RouteConfiguration](c, *routeName)
		watch(ctx, log, w, err)
	case cluster.FullCommand():
		w, err := xdsclient.Watch[xdsresource.Cluster](c, *clusterName)
		watch(ctx, log, w, err)
	case endpoint.FullCommand():
		w, err := xdsclient.Watch[xdsresource.ClusterLoadAssignment](c, *endpointName)
		watch(ctx, log, w, err)
	}
}

// watch blocks printing updates from w (and any error from constructing
// it) until ctx is done.
func watch[T any](ctx context.Context, log logrus.FieldLogger, w *xdsclient.Watcher[T], err error) {
	if err != nil {
		log.WithError(err).Fatal("registering watch")
	}
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case u, ok := <-w.Updates():
			if !ok {
				return
			}
			printUpdate(u)
		}
	}
}

func printUpdate[T any](u xdsclient.Update[T]) {
	switch v := u.(type) {
	case xdsclient.SetUpdate[T]:
		fmt.Printf("SET   %+v\n", v.Value)
	case xdsclient.ErrorUpdate[T]:
		fmt.Printf("ERROR %v\n", v.Err)
	case xdsclient.RemoveUpdate[T]:
		fmt.Println("REMOVE")
	}
}

func readFileOrExit(log logrus.FieldLogger, path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Fatalf("reading %s", path)
		return nil, err
	}
	return b, nil
}
