package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qrouting/collector"
	"qrouting/common"
	"qrouting/loader"
	"qrouting/route_service"
	"qrouting/routing"
	"qrouting/snapshot_sync"
	"qrouting/topology"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	exitOK    = 0
	exitUsage = 2
)

var errUsage = errors.New("usage")

// app carries what every command needs once flags are parsed
type app struct {
	configPath   string
	topologyPath string
	k            int
	kSet         bool
	cfg          *QRoutingConfig
}

type queryFlags struct {
	source      string
	destination string
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.source, "src", "", "source node id")
	cmd.Flags().StringVar(&q.destination, "dst", "", "destination node id")
}

func (q *queryFlags) validate() error {
	if q.source == "" || q.destination == "" {
		return fmt.Errorf("%w: --src and --dst are required", errUsage)
	}
	return nil
}

func (a *app) requireTopology() error {
	if a.topologyPath == "" {
		return fmt.Errorf("%w: --topology is required", errUsage)
	}
	return nil
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%w: unexpected arguments %v for %q", errUsage, args, cmd.CommandPath())
	}
	return nil
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{}
	var query queryFlags
	var remote string

	root := &cobra.Command{
		Use:   "qrouting",
		Short: "Rank entanglement routes through a quantum network",
		Long: `qrouting ranks routes between two nodes of a quantum network by end-to-end
entanglement success probability: the product of the link probabilities times
the swap probability of every intermediate node.

Without --k it reports the best route, with --k it also reports the k best
loopless routes, best first.`,
		Args:          noArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.configPath)
			if err != nil {
				return err
			}
			setupLogging(cfg.Log)
			a.cfg = cfg
			a.kSet = cmd.Flags().Changed("k")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := query.validate(); err != nil {
				return err
			}
			if remote != "" {
				return a.queryRemote(cmd.Context(), remote, query, cmd.OutOrStdout())
			}
			if err := a.requireTopology(); err != nil {
				return err
			}
			return a.queryLocal(query, cmd.OutOrStdout())
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	root.PersistentFlags().StringVar(&a.configPath, "config", "qrouting_config.toml", "path to the toml config file")
	root.PersistentFlags().StringVar(&a.topologyPath, "topology", "", "topology file (.toml or .json)")
	root.PersistentFlags().IntVarP(&a.k, "k", "k", 0, "number of ranked routes to report")
	query.register(root)
	root.Flags().StringVar(&remote, "remote", "", "query a running route service at this address")

	root.AddCommand(newAllPairsCommand(a))
	root.AddCommand(newServeCommand(a))
	root.AddCommand(newPublishCommand(a))
	root.AddCommand(newSubmitCommand(a))
	return root
}

func newAllPairsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "all-pairs",
		Short: "Rank routes for every node pair of the topology",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireTopology(); err != nil {
				return err
			}
			return a.planAllPairs(cmd.OutOrStdout())
		},
	}
}

func newServeCommand(a *app) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the route query service",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "follow topology snapshots and route tasks in etcd")
	return cmd
}

func newPublishCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish the topology file to etcd",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireTopology(); err != nil {
				return err
			}
			return a.publishTopology(cmd.Context())
		},
	}
}

func newSubmitCommand(a *app) *cobra.Command {
	var query queryFlags
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a route query as an etcd task and wait for its result",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := query.validate(); err != nil {
				return err
			}
			return a.submitQuery(cmd.Context(), query, cmd.OutOrStdout())
		},
	}
	query.register(cmd)
	return cmd
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return exitOK
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	kind, code := routing.ErrorKind(err)
	fmt.Fprintf(stderr, "%s: %v\n", kind, err)
	return code
}

type routeRecord struct {
	Path          []string `json:"path"`
	Score         float64  `json:"score"`
	Hops          int      `json:"hops"`
	RatePerSecond *float64 `json:"rate_per_second,omitempty"`
	Share         float64  `json:"share,omitempty"`
}

type report struct {
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	Generation  uint64        `json:"generation,omitempty"`
	BestRoute   *routeRecord  `json:"best_route,omitempty"`
	TopKRoutes  []routeRecord `json:"top_k_routes,omitempty"`
}

// newRecord attaches the physical entanglement rate when every hop of the
// route has a measured fiber length
func (a *app) newRecord(route routing.Route, snapshot *loader.Snapshot) routeRecord {
	record := routeRecord{Path: route.Path, Score: route.Score, Hops: route.Hops()}
	if snapshot == nil || route.Hops() == 0 {
		return record
	}
	if distances, ok := snapshot.HopDistances(route.Path); ok {
		rate := a.cfg.Physics.PathRate(distances)
		record.RatePerSecond = &rate
	}
	return record
}

// newRecords also reports how a weighted round robin over the routes would
// split entanglement requests between them
func (a *app) newRecords(routes []routing.Route, snapshot *loader.Snapshot) []routeRecord {
	shares := routing.NewWeightedRoundRobin(routes).Shares()
	records := make([]routeRecord, 0, len(routes))
	for i, r := range routes {
		record := a.newRecord(r, snapshot)
		record.Share = shares[i]
		records = append(records, record)
	}
	return records
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) loadTopology() (*topology.Topology, *loader.Snapshot, error) {
	topo, snapshot, err := loader.LoadTopology(a.topologyPath, a.cfg.Physics)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("topology loaded: %s, nodes=%d, edges=%d", a.topologyPath, topo.NodeCount(), topo.EdgeCount())
	return topo, snapshot, nil
}

func (a *app) queryLocal(query queryFlags, stdout io.Writer) error {
	topo, snapshot, err := a.loadTopology()
	if err != nil {
		return err
	}

	out := report{Source: query.source, Destination: query.destination}
	best, err := routing.BestRoute(topo, query.source, query.destination)
	if err != nil {
		return err
	}
	record := a.newRecord(best, snapshot)
	out.BestRoute = &record

	if a.kSet {
		routes, err := routing.TopKRoutes(topo, query.source, query.destination, a.k)
		if err != nil {
			return err
		}
		out.TopKRoutes = a.newRecords(routes, snapshot)
	}
	return writeJSON(stdout, out)
}

type pairReport struct {
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	Routes      []routeRecord `json:"routes,omitempty"`
	Error       string        `json:"error,omitempty"`
}

type allPairsReport struct {
	Pairs []pairReport `json:"pairs"`
	Best  *pairReport  `json:"best,omitempty"`
}

func (a *app) planAllPairs(stdout io.Writer) error {
	topo, snapshot, err := a.loadTopology()
	if err != nil {
		return err
	}
	k := a.cfg.Planner.DefaultK
	if a.kSet {
		k = a.k
	}

	planner := routing.NewPlanner(common.PoolConfig{MaxWorkers: a.cfg.Planner.MaxWorkers})
	defer planner.Release()

	start := time.Now()
	results := planner.CalculateRoutesForAllFlows(topo, routing.AllPairs(topo), k)
	log.Infof("all pairs planned: flows=%d, k=%d, took %v", len(results), k, time.Since(start))

	toPair := func(r routing.FlowResult) pairReport {
		p := pairReport{Source: r.Flow.Source, Destination: r.Flow.Destination}
		if r.Err != nil {
			p.Error, _ = routing.ErrorKind(r.Err)
			return p
		}
		p.Routes = a.newRecords(r.Routes, snapshot)
		return p
	}

	out := allPairsReport{Pairs: make([]pairReport, 0, len(results))}
	for _, r := range results {
		out.Pairs = append(out.Pairs, toPair(r))
	}
	if best, ok := routing.BestOverall(results); ok {
		p := toPair(best)
		out.Best = &p
	}
	return writeJSON(stdout, out)
}

func (a *app) queryRemote(ctx context.Context, addr string, query queryFlags, stdout io.Writer) error {
	client, err := route_service.NewClient(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out := report{Source: query.source, Destination: query.destination}
	best, generation, err := client.BestRoute(ctx, query.source, query.destination)
	if err != nil {
		return err
	}
	record := a.newRecord(best, nil)
	out.BestRoute = &record
	out.Generation = generation

	if a.kSet {
		routes, _, err := client.TopKRoutes(ctx, query.source, query.destination, a.k)
		if err != nil {
			return err
		}
		out.TopKRoutes = a.newRecords(routes, nil)
	}
	return writeJSON(stdout, out)
}

func (a *app) publishTopology(ctx context.Context) error {
	_, snapshot, err := a.loadTopology()
	if err != nil {
		return err
	}
	publisher, err := snapshot_sync.NewPublisher(a.cfg.Etcd)
	if err != nil {
		return err
	}
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Etcd.DialTimeout)
	defer cancel()
	return publisher.PublishTopology(ctx, snapshot)
}

func (a *app) submitQuery(ctx context.Context, query queryFlags, stdout io.Writer) error {
	publisher, err := snapshot_sync.NewPublisher(a.cfg.Etcd)
	if err != nil {
		return err
	}
	defer publisher.Close()

	taskType := snapshot_sync.TaskTypeBestRoute
	routeQuery := snapshot_sync.RouteQuery{Source: query.source, Destination: query.destination}
	if a.kSet {
		taskType = snapshot_sync.TaskTypeTopKRoutes
		routeQuery.K = a.k
	}
	task, err := snapshot_sync.NewRouteTask(taskType, routeQuery)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := publisher.PublishTask(ctx, task); err != nil {
		return err
	}
	result, err := publisher.WaitTaskResult(ctx, task.ID, 200*time.Millisecond)
	if err != nil {
		return err
	}
	if result.Error != "" {
		return fmt.Errorf("task %s failed: %s: %s", task.ID, result.ErrorKind, result.Error)
	}
	_, err = fmt.Fprintln(stdout, result.Result)
	return err
}

func (a *app) serve(watch bool) error {
	if host, err := collector.CollectHostInfo(); err != nil {
		log.Warnf("collect host info failed, err:%v", err)
	} else {
		log.Infof("host %s (%s): cpus=%d, memory total=%d available=%d",
			host.Hostname, host.OS, host.CPUInfo.LogicalCores, host.MemoryInfo.Total, host.MemoryInfo.Available)
	}

	manager := common.GetInstance()
	if a.topologyPath != "" {
		topo, _, err := a.loadTopology()
		if err != nil {
			return err
		}
		manager.SetTopology(topo)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if watch {
		watcher, err := snapshot_sync.NewTopologyWatcher(a.cfg.Etcd, manager, a.cfg.Physics)
		if err != nil {
			return err
		}
		defer watcher.Close()
		go func() {
			if err := watcher.Start(ctx); err != nil {
				log.Errorf("topology watcher stopped, err:%v", err)
			}
		}()

		worker, err := snapshot_sync.NewTaskWorker(a.cfg.Etcd, manager, a.cfg.Planner.DefaultK)
		if err != nil {
			return err
		}
		defer worker.Close()
		go func() {
			if err := worker.Run(ctx); err != nil {
				log.Errorf("task worker stopped, err:%v", err)
			}
		}()
	}

	metrics := route_service.NewMetrics(prometheus.NewRegistry(), manager)
	if a.cfg.Service.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer := &http.Server{Addr: a.cfg.Service.MetricsAddr, Handler: mux}
		go func() {
			log.Infof("metrics listening on %s", a.cfg.Service.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics server stopped, err:%v", err)
			}
		}()
		defer metricsServer.Close()
	}

	listener, err := net.Listen("tcp", a.cfg.Service.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening tcp failed, addr:%v: %w", a.cfg.Service.ListenAddr, err)
	}
	srv := route_service.NewServer(manager, a.cfg.Planner.DefaultK).WithMetrics(metrics)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- route_service.Serve(ctx, listener, srv)
	}()

	log.Infof("qrouting init success")
	select {
	case <-signalChan:
		log.Infof("received signal, shutting down")
		cancel()
		return <-serveErr
	case err := <-serveErr:
		cancel()
		return err
	}
}
