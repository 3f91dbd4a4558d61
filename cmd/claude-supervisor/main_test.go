package main

import (
	"reflect"
	"testing"
)

func TestCollectTasksFromTasksFlag(t *testing.T) {
	got := collectTasks("task one, task two ,task three", "")
	want := []string{"task one", "task two", "task three"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("collectTasks() = %v, want %v", got, want)
	}
}

func TestCollectTasksFromTaskFlag(t *testing.T) {
	got := collectTasks("", "single task")
	want := []string{"single task"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("collectTasks() = %v, want %v", got, want)
	}
}

func TestCollectTasksPrefersTasksFlag(t *testing.T) {
	got := collectTasks("a,b", "ignored")
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("collectTasks() = %v, want %v", got, want)
	}
}

func TestCollectTasksEmpty(t *testing.T) {
	if got := collectTasks("", ""); got != nil {
		t.Fatalf("collectTasks() = %v, want nil", got)
	}
}

func TestCollectTasksSkipsBlankEntries(t *testing.T) {
	got := collectTasks("a,,  ,b", "")
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("collectTasks() = %v, want %v", got, want)
	}
}
