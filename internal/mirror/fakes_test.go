package mirror

import (
	"context"
	"fmt"
	"sync"
)

type fakeDirectory struct {
	mu        sync.Mutex
	channels  map[CommunityID][]ChannelDescriptor
	listErr   map[CommunityID]error
	createErr error
	nextID    int
	created   []ChannelDescriptor
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		channels: map[CommunityID][]ChannelDescriptor{},
		listErr:  map[CommunityID]error{},
		nextID:   9000,
	}
}

func (f *fakeDirectory) ListChannels(ctx context.Context, community CommunityID) ([]ChannelDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[community]; err != nil {
		return nil, err
	}
	return append([]ChannelDescriptor(nil), f.channels[community]...), nil
}

func (f *fakeDirectory) CreateChannel(ctx context.Context, community CommunityID, name string, kind ChannelKind) (ChannelDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return ChannelDescriptor{}, f.createErr
	}
	f.nextID++
	ch := ChannelDescriptor{ID: ChannelID(fmt.Sprint(f.nextID)), Name: name, Kind: kind}
	f.channels[community] = append(f.channels[community], ch)
	f.created = append(f.created, ch)
	return ch, nil
}

func (f *fakeDirectory) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeEndpoints struct {
	mu        sync.Mutex
	existing  map[ChannelID][]Endpoint
	listErr   error
	createErr error
	created   map[ChannelID]int
	names     []string
}

func newFakeEndpoints() *fakeEndpoints {
	return &fakeEndpoints{
		existing: map[ChannelID][]Endpoint{},
		created:  map[ChannelID]int{},
	}
}

func (f *fakeEndpoints) ListEndpoints(ctx context.Context, channel ChannelID) ([]Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Endpoint(nil), f.existing[channel]...), nil
}

func (f *fakeEndpoints) CreateEndpoint(ctx context.Context, channel ChannelID, displayName string) (Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return Endpoint{}, f.createErr
	}
	f.created[channel]++
	f.names = append(f.names, displayName)
	ep := Endpoint{ID: "wh-" + channel.String(), Name: displayName, Token: "tok-" + channel.String()}
	f.existing[channel] = append(f.existing[channel], ep)
	return ep, nil
}

type pushCall struct {
	endpoint DeliveryEndpoint
	msg      RelayMessage
}

type fakePusher struct {
	mu     sync.Mutex
	calls  []pushCall
	failOn map[ChannelID]error
	block  map[ChannelID]chan struct{}
}

func (f *fakePusher) Push(ctx context.Context, endpoint DeliveryEndpoint, msg RelayMessage) error {
	if ch, ok := f.block[endpoint.ChannelID]; ok {
		<-ch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushCall{endpoint: endpoint, msg: msg})
	return f.failOn[endpoint.ChannelID]
}

func (f *fakePusher) snapshot() []pushCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushCall(nil), f.calls...)
}

type fakeProxy struct {
	fail map[string]bool
}

func (f *fakeProxy) FetchAll(ctx context.Context, sources []AttachmentSource) []File {
	files := make([]File, 0, len(sources))
	for _, src := range sources {
		if f.fail[src.URL] {
			continue
		}
		files = append(files, File{Name: src.Filename, Data: []byte(src.URL)})
	}
	return files
}

func text(id, name string) ChannelDescriptor {
	return ChannelDescriptor{ID: ChannelID(id), Name: name, Kind: 0}
}

func category(id, name string) ChannelDescriptor {
	return ChannelDescriptor{ID: ChannelID(id), Name: name, Kind: 4, Category: true}
}
