/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/aws/fleet-autoscaler/pkg/actuator"
	"github.com/aws/fleet-autoscaler/pkg/cluster"
	"github.com/aws/fleet-autoscaler/pkg/config"
	fleeterrors "github.com/aws/fleet-autoscaler/pkg/errors"
	"github.com/aws/fleet-autoscaler/pkg/fleet"
	"github.com/aws/fleet-autoscaler/pkg/logging"
	"github.com/aws/fleet-autoscaler/pkg/loop"
)

func main() {
	var (
		configPath  string
		clusterName string
		live        bool
		once        bool
	)
	flag.StringVar(&configPath, "config", envDefault("FLEET_AUTOSCALER_CONFIG", "/etc/fleet-autoscaler/config.yaml"), "path to the configuration file")
	flag.StringVar(&clusterName, "cluster", envDefault("CLUSTER_NAME", ""), "the cluster name used to scope fleet tags and node labels")
	flag.BoolVar(&live, "live", false, "enable writes against the orchestrator and cloud fleet API; absent, runs dry-run only")
	flag.BoolVar(&once, "once", false, "run exactly one reconciliation tick and exit, for operational debugging")
	flag.Parse()

	logger := buildLogger()
	defer logger.Sync()
	ctx := logging.NewContext(context.Background(), logger)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", zap.Bool("live", live), zap.String("config", configPath), zap.String("cluster", clusterName))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("loading configuration", zap.Error(err))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal("loading AWS configuration", zap.Error(fleeterrors.NewConfigurationError("aws", err.Error())))
	}
	stsClient := sts.NewFromConfig(awsCfg)
	if _, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		logger.Fatal("AWS authentication probe failed", zap.Error(fleeterrors.NewConfigurationError("aws", err.Error())))
	}
	ec2Client := ec2.NewFromConfig(awsCfg)

	k8sConfig, err := buildKubeConfig()
	if err != nil {
		logger.Fatal("loading kubernetes configuration", zap.Error(fleeterrors.NewConfigurationError("kubeconfig", err.Error())))
	}
	clientset, err := kubernetes.NewForConfig(k8sConfig)
	if err != nil {
		logger.Fatal("building kubernetes client", zap.Error(fleeterrors.NewConfigurationError("kubeconfig", err.Error())))
	}

	clusterReader := cluster.NewReader(clientset, clusterName)
	fleetReader := fleet.NewReader(ec2Client)
	act := actuator.New(clusterReader, fleetReader, live)

	l := &loop.Loop{
		Config:      cfg,
		Cluster:     clusterReader,
		Fleet:       fleetReader,
		Actuator:    act,
		ClusterName: clusterName,
	}

	if once {
		l.RunOnce(ctx)
		return
	}
	if err := l.Run(ctx); err != nil {
		logger.Fatal("control loop exited", zap.Error(err))
	}
	logger.Info("shut down cleanly")
}

func buildLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %s\n", err)
		os.Exit(1)
	}
	return logger
}

// buildKubeConfig prefers in-cluster credentials and falls back to the
// local kubeconfig, the way every client-go based binary in the teacher's
// tree resolves its REST config.
func buildKubeConfig() (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
