// Package kube gathers cluster snapshots for the diagnostic pipeline.
package kube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clusterguard/clusterguard/internal/models"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Provider builds ClusterSnapshots from a live cluster. Listing
// failures degrade to missing sections; only a cluster that yields
// nothing at all is an error.
type Provider struct {
	client kubernetes.Interface
}

// NewProvider wraps an existing clientset (fake clientsets in tests)
func NewProvider(client kubernetes.Interface) *Provider {
	return &Provider{client: client}
}

// NewFromKubeconfig connects via kubeconfig, falling back to
// in-cluster config when the path is empty and no default file exists.
func NewFromKubeconfig(path string) (*Provider, error) {
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".kube", "config")
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}

	var cfg *rest.Config
	var err error
	if path != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", path)
	} else {
		cfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster config: %w", err)
	}

	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return &Provider{client: client}, nil
}

// ClusterSnapshot lists nodes, pods, deployments and events. Each
// section that fails to list is recorded in Missing and skipped.
// Utilization needs a metrics source this provider does not have and
// is left nil; the utilization analyzer skips it.
func (p *Provider) ClusterSnapshot(ctx context.Context, clusterID string) (*models.ClusterSnapshot, error) {
	snap := &models.ClusterSnapshot{ClusterID: clusterID, ClusterName: clusterID}
	var errs []error
	opts := metav1.ListOptions{}

	if nodes, err := p.client.CoreV1().Nodes().List(ctx, opts); err != nil {
		snap.Missing = append(snap.Missing, models.SectionNodes)
		errs = append(errs, fmt.Errorf("nodes: %w", err))
	} else {
		snap.Nodes = nodes.Items
	}

	if pods, err := p.client.CoreV1().Pods(metav1.NamespaceAll).List(ctx, opts); err != nil {
		snap.Missing = append(snap.Missing, models.SectionPods)
		errs = append(errs, fmt.Errorf("pods: %w", err))
	} else {
		snap.Pods = pods.Items
	}

	if deps, err := p.client.AppsV1().Deployments(metav1.NamespaceAll).List(ctx, opts); err != nil {
		snap.Missing = append(snap.Missing, models.SectionDeployments)
		errs = append(errs, fmt.Errorf("deployments: %w", err))
	} else {
		snap.Deployments = deps.Items
	}

	if events, err := p.client.CoreV1().Events(metav1.NamespaceAll).List(ctx, opts); err != nil {
		snap.Missing = append(snap.Missing, models.SectionEvents)
		errs = append(errs, fmt.Errorf("events: %w", err))
	} else {
		snap.Events = events.Items
	}

	if len(errs) == 4 {
		return nil, fmt.Errorf("%w: %w", models.ErrSnapshotUnavailable, errors.Join(errs...))
	}
	if len(errs) > 0 {
		return snap, errors.Join(errs...)
	}
	return snap, nil
}
