package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p/ping"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p/reactor"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p/simulation"
)

var (
	numNodes     int
	numRounds    int
	pingInterval time.Duration
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a simulated network of nodes exchanging heartbeats.",
	Long:  ``,
	Run:   runStart,
}

func init() {
	startCmd.Flags().IntVar(&numNodes, "nodes", 3, "number of simulated nodes")
	startCmd.Flags().IntVar(&numRounds, "rounds", 3, "number of heartbeat rounds")
	startCmd.Flags().DurationVar(&pingInterval, "interval", time.Second, "interval between heartbeat rounds")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	simnet := simulation.NewSimnet()
	endpoints := []*simulation.SimnetEndpoint{}
	handlers := map[string]*ping.Handler{}

	for i := 0; i < numNodes; i++ {
		id := fmt.Sprintf("node%v", i)
		endpoint := simnet.AddEndpoint(id)
		handler := ping.NewHandler(endpoint.Dispatcher())
		pingReactor := reactor.NewReactor("ping", reactor.GetDefaultReactorConfig(), handler)
		if err := endpoint.Dispatcher().AddReactor(pingReactor); err != nil {
			log.WithFields(log.Fields{"err": err, "node": id}).Fatal("Failed to add ping reactor")
		}
		endpoints = append(endpoints, endpoint)
		handlers[id] = handler
	}

	if err := simnet.Start(ctx); err != nil {
		log.WithFields(log.Fields{"err": err}).Fatal("Failed to start the simulated network")
	}

	// Full mesh
	for i := 0; i < len(endpoints); i++ {
		for j := i + 1; j < len(endpoints); j++ {
			if err := simnet.Connect(endpoints[i].ID(), endpoints[j].ID()); err != nil {
				log.WithFields(log.Fields{"err": err}).Fatal("Failed to connect endpoints")
			}
		}
	}

	for round := 0; round < numRounds; round++ {
		for _, endpoint := range endpoints {
			for _, peerID := range endpoint.Dispatcher().Peers() {
				handlers[endpoint.ID()].Ping(peerID)
			}
		}
		time.Sleep(pingInterval)
	}

	for _, endpoint := range endpoints {
		for _, peerID := range endpoint.Dispatcher().Peers() {
			log.Infof("%v received %v pong(s) from %v",
				endpoint.ID(), handlers[endpoint.ID()].PongCount(peerID), peerID)
		}
	}

	simnet.Stop()
	simnet.Wait()
}
