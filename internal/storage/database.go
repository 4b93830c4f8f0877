package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/wikigraph/internal/graph"
	"github.com/IshaanNene/wikigraph/internal/types"
)

// Collection names used by MongoStore.
const (
	graphsCollection = "graphs"
	nodesCollection  = "nodes"
	edgesCollection  = "edges"
)

// mongoNode is a node document tagged with its graph and insertion order.
type mongoNode struct {
	Graph      string `bson:"graph"`
	Seq        int    `bson:"seq"`
	graph.Node `bson:",inline"`
}

type mongoEdge struct {
	Graph      string `bson:"graph"`
	Seq        int    `bson:"seq"`
	graph.Edge `bson:",inline"`
}

// MongoStore keeps graph metadata, nodes and edges in three collections.
type MongoStore struct {
	client *mongo.Client
	graphs *mongo.Collection
	nodes  *mongo.Collection
	edges  *mongo.Collection
	logger *slog.Logger
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "connect", Err: err}
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Op: "ping", Err: err}
	}

	db := client.Database(database)
	s := &MongoStore{
		client: client,
		graphs: db.Collection(graphsCollection),
		nodes:  db.Collection(nodesCollection),
		edges:  db.Collection(edgesCollection),
		logger: logger.With("component", "mongo_store"),
	}

	indexes := []struct {
		coll *mongo.Collection
		keys bson.D
	}{
		{s.nodes, bson.D{{Key: "graph", Value: 1}, {Key: "seq", Value: 1}}},
		{s.edges, bson.D{{Key: "graph", Value: 1}, {Key: "seq", Value: 1}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: idx.keys}); err != nil {
			client.Disconnect(context.Background())
			return nil, &types.StorageError{Backend: "mongodb", Op: "index", Err: err}
		}
	}
	return s, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

// Save replaces any previous version of the graph.
func (s *MongoStore) Save(ctx context.Context, g *graph.Graph) error {
	name := g.Meta.Name
	if name == "" {
		return &types.StorageError{Backend: "mongodb", Op: "save", Err: errors.New("graph has no name")}
	}

	_, err := s.graphs.ReplaceOne(ctx, bson.M{"_id": name}, g.Meta, options.Replace().SetUpsert(true))
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Op: "save", Err: fmt.Errorf("upsert meta: %w", err)}
	}

	filter := bson.M{"graph": name}
	if _, err := s.nodes.DeleteMany(ctx, filter); err != nil {
		return &types.StorageError{Backend: "mongodb", Op: "save", Err: fmt.Errorf("clear nodes: %w", err)}
	}
	if _, err := s.edges.DeleteMany(ctx, filter); err != nil {
		return &types.StorageError{Backend: "mongodb", Op: "save", Err: fmt.Errorf("clear edges: %w", err)}
	}

	nodes := g.Nodes()
	if len(nodes) > 0 {
		docs := make([]any, len(nodes))
		for i, n := range nodes {
			docs[i] = mongoNode{Graph: name, Seq: i, Node: n}
		}
		if _, err := s.nodes.InsertMany(ctx, docs); err != nil {
			return &types.StorageError{Backend: "mongodb", Op: "save", Err: fmt.Errorf("insert nodes: %w", err)}
		}
	}

	edges := g.Edges()
	if len(edges) > 0 {
		docs := make([]any, len(edges))
		for i, e := range edges {
			docs[i] = mongoEdge{Graph: name, Seq: i, Edge: e}
		}
		if _, err := s.edges.InsertMany(ctx, docs); err != nil {
			return &types.StorageError{Backend: "mongodb", Op: "save", Err: fmt.Errorf("insert edges: %w", err)}
		}
	}

	s.logger.Info("graph saved", "name", name, "nodes", len(nodes), "edges", len(edges))
	return nil
}

// Load reads a graph back in insertion order.
func (s *MongoStore) Load(ctx context.Context, name string) (*graph.Graph, error) {
	var doc Document
	if err := s.graphs.FindOne(ctx, bson.M{"_id": name}).Decode(&doc.Meta); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = fmt.Errorf("%w: graph %q", types.ErrNotFound, name)
		}
		return nil, &types.StorageError{Backend: "mongodb", Op: "load", Err: err}
	}

	bySeq := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})

	cur, err := s.nodes.Find(ctx, bson.M{"graph": name}, bySeq)
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "load", Err: err}
	}
	var nodes []mongoNode
	if err := cur.All(ctx, &nodes); err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "load", Err: fmt.Errorf("decode nodes: %w", err)}
	}

	cur, err = s.edges.Find(ctx, bson.M{"graph": name}, bySeq)
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "load", Err: err}
	}
	var edges []mongoEdge
	if err := cur.All(ctx, &edges); err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "load", Err: fmt.Errorf("decode edges: %w", err)}
	}

	for _, n := range nodes {
		doc.Nodes = append(doc.Nodes, n.Node)
	}
	for _, e := range edges {
		doc.Edges = append(doc.Edges, e.Edge)
	}
	g, err := FromDocument(doc)
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "load", Err: err}
	}
	return g, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- Multi-Store Fan-Out ---

// MultiStore writes graphs to several backends. Loads are served by the
// first backend.
type MultiStore struct {
	backends []GraphStore
	logger   *slog.Logger
}

// NewMultiStore creates a store that fans out to multiple backends.
func NewMultiStore(backends []GraphStore, logger *slog.Logger) *MultiStore {
	return &MultiStore{
		backends: backends,
		logger:   logger.With("component", "multi_store"),
	}
}

func (s *MultiStore) Name() string { return "multi" }

// Save writes to every backend and reports all failures together.
func (s *MultiStore) Save(ctx context.Context, g *graph.Graph) error {
	var result *multierror.Error
	for _, backend := range s.backends {
		if err := backend.Save(ctx, g); err != nil {
			s.logger.Error("backend save failed", "backend", backend.Name(), "error", err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (s *MultiStore) Load(ctx context.Context, name string) (*graph.Graph, error) {
	if len(s.backends) == 0 {
		return nil, &types.StorageError{Backend: "multi", Op: "load", Err: types.ErrNotFound}
	}
	return s.backends[0].Load(ctx, name)
}

func (s *MultiStore) Close() error {
	var result *multierror.Error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
