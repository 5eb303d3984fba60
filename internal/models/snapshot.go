package models

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
)

// Snapshot section names, used in Missing when gathering is partial
const (
	SectionNodes       = "nodes"
	SectionPods        = "pods"
	SectionDeployments = "deployments"
	SectionEvents      = "events"
	SectionUtilization = "utilization"
)

// Utilization is cluster-wide resource usage in percent
type Utilization struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	StoragePercent float64 `json:"storage_percent"`
}

// ClusterSnapshot is the raw state handed to the diagnostic pipeline
// by the data provider. The pipeline only reads it. Missing lists
// sections the provider could not gather; analyzers skip those and
// the diagnosis notes reduced confidence instead of failing.
type ClusterSnapshot struct {
	ClusterID   string
	ClusterName string

	Nodes       []corev1.Node
	Pods        []corev1.Pod
	Deployments []appsv1.Deployment
	Events      []corev1.Event
	Utilization *Utilization

	Missing []string
}

// HasSection reports whether a section was gathered
func (s *ClusterSnapshot) HasSection(name string) bool {
	for _, m := range s.Missing {
		if m == name {
			return false
		}
	}
	return true
}
