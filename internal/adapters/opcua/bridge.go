package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/zhuoqizheng/rovio/internal/domain"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

// Monitored item client handles, one per estimator output node.
const (
	handleSeq uint32 = iota + 1
	handleFeatureCovAreas
	handleVelocity
	handlePosition
	handleOrientation
)

// Config captures the runtime details required to open an OPC UA session
// against the estimator's published address space.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode"`
	SecurityPolicy   string        `yaml:"security_policy"`
	ApplicationName  string        `yaml:"application_name"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`

	// SourceNodeID labels every observation (and hence every decision)
	// with the estimator instance it came from.
	SourceNodeID string `yaml:"source_node_id"`

	Nodes NodeSet `yaml:"nodes"`

	// ResetNodeID is the boolean command node the bridge writes to when a
	// reset is requested. Optional; without it RequestReset fails.
	ResetNodeID string `yaml:"reset_node_id"`
}

// NodeSet maps the estimator's per-cycle outputs to OPC UA node IDs. The
// sequence node acts as the end-of-cycle marker: an observation is emitted
// whenever it ticks, assembled from the latest value of every other node.
type NodeSet struct {
	Seq             string `yaml:"seq"`
	FeatureCovAreas string `yaml:"feature_cov_areas"` // array of doubles, one per tracked landmark
	Velocity        string `yaml:"velocity"`          // 3 doubles, body frame
	Position        string `yaml:"position"`          // 3 doubles, world frame
	Orientation     string `yaml:"orientation"`       // 4 doubles, w x y z
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "ROVIO Health Guard"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 50 * time.Millisecond
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
	if c.SourceNodeID == "" {
		c.SourceNodeID = "rovio"
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.Nodes.Seq == "" {
		return errors.New("nodes.seq is required")
	}
	if c.Nodes.FeatureCovAreas == "" {
		return errors.New("nodes.feature_cov_areas is required")
	}
	if c.Nodes.Velocity == "" {
		return errors.New("nodes.velocity is required")
	}
	if c.Nodes.Position == "" {
		return errors.New("nodes.position is required")
	}
	if c.Nodes.Orientation == "" {
		return errors.New("nodes.orientation is required")
	}
	return nil
}

// Bridge subscribes to the estimator's OPC UA nodes, assembles one
// Observation per update cycle, and writes reset commands back. It is both
// the guard's EstimatorSource and its EstimatorResetter.
type Bridge struct {
	cfg     Config
	client  *opcua.Client
	sub     *opcua.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool

	// latest values per node, assembled into an Observation on seq tick
	pending domain.Observation
}

func NewBridge(cfg Config) (*Bridge, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bridge{cfg: cfg}, nil
}

func (b *Bridge) Start(out chan<- *domain.Observation) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return fmt.Errorf("opcua bridge already started")
	}
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	clientOpts, err := b.buildClientOptions()
	if err != nil {
		cancel()
		return err
	}

	client, err := opcua.NewClient(b.cfg.Endpoint, clientOpts...)
	if err != nil {
		cancel()
		return fmt.Errorf("opcua new client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		cancel()
		return fmt.Errorf("opcua connect: %w", err)
	}

	notifyCh := make(chan *opcua.PublishNotificationData, 16)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: b.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		cancel()
		_ = client.Close(ctx)
		return fmt.Errorf("opcua subscribe: %w", err)
	}

	nodes := []struct {
		id     string
		handle uint32
	}{
		{b.cfg.Nodes.Seq, handleSeq},
		{b.cfg.Nodes.FeatureCovAreas, handleFeatureCovAreas},
		{b.cfg.Nodes.Velocity, handleVelocity},
		{b.cfg.Nodes.Position, handlePosition},
		{b.cfg.Nodes.Orientation, handleOrientation},
	}
	for _, node := range nodes {
		nodeID, err := ua.ParseNodeID(node.id)
		if err != nil {
			b.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("parse node id %q: %w", node.id, err)
		}
		req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, node.handle)
		if b.cfg.SamplingInterval > 0 {
			req.RequestedParameters.SamplingInterval = float64(b.cfg.SamplingInterval / time.Millisecond)
		}
		res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
		if err != nil {
			b.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("monitor node %q: %w", node.id, err)
		}
		if len(res.Results) == 0 {
			b.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("monitor node %q failed: empty result", node.id)
		}
		if res.Results[0].StatusCode != ua.StatusOK {
			b.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("monitor node %q failed: %s", node.id, res.Results[0].StatusCode)
		}
	}

	b.mu.Lock()
	b.client = client
	b.sub = sub
	b.cancel = cancel
	b.started = true
	b.pending = domain.Observation{
		Orientation:  quat.Number{Real: 1},
		SourceNodeID: b.cfg.SourceNodeID,
	}
	b.mu.Unlock()

	b.wg.Add(1)
	go b.consume(ctx, notifyCh, out)
	return nil
}

func (b *Bridge) Stop() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	cancel := b.cancel
	sub := b.sub
	client := b.client
	b.started = false
	b.cancel = nil
	b.sub = nil
	b.client = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()

	var err error
	if sub != nil {
		if e := sub.Cancel(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	if client != nil {
		if e := client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}

	b.wg.Wait()
	return err
}

// RequestReset writes true to the configured reset command node. The
// estimator owns everything that happens after that.
func (b *Bridge) RequestReset(ctx context.Context, d *domain.Decision) error {
	if b.cfg.ResetNodeID == "" {
		return errors.New("opcua bridge: no reset node configured")
	}

	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	if client == nil {
		return errors.New("opcua bridge: not connected")
	}

	nodeID, err := ua.ParseNodeID(b.cfg.ResetNodeID)
	if err != nil {
		return fmt.Errorf("parse reset node id %q: %w", b.cfg.ResetNodeID, err)
	}
	v, err := ua.NewVariant(true)
	if err != nil {
		return fmt.Errorf("reset variant: %w", err)
	}

	req := &ua.WriteRequest{
		NodesToWrite: []*ua.WriteValue{
			{
				NodeID:      nodeID,
				AttributeID: ua.AttributeIDValue,
				Value: &ua.DataValue{
					EncodingMask: ua.DataValueValue,
					Value:        v,
				},
			},
		},
	}

	resp, err := client.Write(ctx, req)
	if err != nil {
		return fmt.Errorf("write reset node: %w", err)
	}
	if len(resp.Results) == 0 || resp.Results[0] != ua.StatusOK {
		return fmt.Errorf("write reset node rejected: %v", resp.Results)
	}
	return nil
}

func (b *Bridge) consume(ctx context.Context, ch <-chan *opcua.PublishNotificationData, out chan<- *domain.Observation) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-ch:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				logrus.WithError(notif.Error).Warn("opcua: notification error")
				continue
			}
			b.processNotification(ctx, notif.Value, out)
		}
	}
}

func (b *Bridge) processNotification(ctx context.Context, val interface{}, out chan<- *domain.Observation) {
	data, ok := val.(*ua.DataChangeNotification)
	if !ok {
		return
	}

	for _, item := range data.MonitoredItems {
		obs := b.applyItem(item)
		if obs == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case out <- obs:
		}
	}
}

// applyItem folds one data change into the pending cycle. A seq tick
// finalizes the cycle and returns the assembled observation; every other
// node just updates its slot.
func (b *Bridge) applyItem(item *ua.MonitoredItemNotification) *domain.Observation {
	b.mu.Lock()
	defer b.mu.Unlock()

	v := item.Value.Value

	switch item.ClientHandle {
	case handleFeatureCovAreas:
		if areas, ok := variantToFloats(v); ok {
			b.pending.FeatureCovAreas = areas
		}
	case handleVelocity:
		if vec, ok := variantToVec3(v); ok {
			b.pending.Velocity = vec
		}
	case handlePosition:
		if vec, ok := variantToVec3(v); ok {
			b.pending.Position = vec
		}
	case handleOrientation:
		if q, ok := variantToQuat(v); ok {
			b.pending.Orientation = q
		}
	case handleSeq:
		seq, ok := variantToUint64(v)
		if !ok {
			logrus.WithField("type", fmt.Sprintf("%T", v)).Warn("opcua: unsupported seq payload")
			return nil
		}

		ts := item.Value.ServerTimestamp
		if ts.IsZero() {
			ts = item.Value.SourceTimestamp
		}
		if ts.IsZero() {
			ts = time.Now()
		}

		obs := b.pending
		obs.Seq = seq
		obs.Timestamp = ts
		// the covariance array belongs to the emitted cycle
		obs.FeatureCovAreas = append([]float64(nil), b.pending.FeatureCovAreas...)
		return &obs
	}
	return nil
}

func (b *Bridge) buildClientOptions() ([]opcua.Option, error) {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(b.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(b.cfg.SecurityPolicy)),
		opcua.ApplicationName(b.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}

	if b.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(b.cfg.Username, b.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}

	return opts, nil
}

func (b *Bridge) cleanupOnError(ctx context.Context, cancel context.CancelFunc, sub *opcua.Subscription, client *opcua.Client) {
	cancel()
	if sub != nil {
		_ = sub.Cancel(ctx)
	}
	if client != nil {
		_ = client.Close(ctx)
	}
}

func variantToFloats(v *ua.Variant) ([]float64, bool) {
	if v == nil {
		return nil, false
	}

	switch val := v.Value().(type) {
	case []float64:
		return append([]float64(nil), val...), true
	case []float32:
		out := make([]float64, len(val))
		for i, f := range val {
			out[i] = float64(f)
		}
		return out, true
	case float64:
		return []float64{val}, true
	case float32:
		return []float64{float64(val)}, true
	default:
		return nil, false
	}
}

func variantToVec3(v *ua.Variant) (r3.Vec, bool) {
	f, ok := variantToFloats(v)
	if !ok || len(f) != 3 {
		return r3.Vec{}, false
	}
	return r3.Vec{X: f[0], Y: f[1], Z: f[2]}, true
}

func variantToQuat(v *ua.Variant) (quat.Number, bool) {
	f, ok := variantToFloats(v)
	if !ok || len(f) != 4 {
		return quat.Number{}, false
	}
	return quat.Number{Real: f[0], Imag: f[1], Jmag: f[2], Kmag: f[3]}, true
}

func variantToUint64(v *ua.Variant) (uint64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case uint64:
		return val, true
	case uint32:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case int64:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case int32:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case float64:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var (
	_ ports.EstimatorSource   = (*Bridge)(nil)
	_ ports.EstimatorResetter = (*Bridge)(nil)
)
