package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"prism-task-editor/domain"
)

// tagPartition holds every catalog row; the catalog is shared by all users.
const tagPartition = "tags"

// Storage reads the tag catalog from an Azure table.
type Storage struct {
	tagTable *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, tagsTable string) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{tagTable: svc.NewClient(tagsTable)}, nil
}

type tagEntity struct {
	RowKey string `json:"RowKey"`
	Label  string `json:"Label"`
	Order  int    `json:"Order"`
}

// FetchTags lists the catalog ordered by the Order column.
func (s *Storage) FetchTags(ctx context.Context) ([]domain.Tag, error) {
	filter := "PartitionKey eq '" + tagPartition + "'"
	pager := s.tagTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	var ents []tagEntity
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			ent, err := decodeTagEntity(raw)
			if err != nil {
				return nil, err
			}
			ents = append(ents, ent)
		}
	}
	return tagsFromEntities(ents), nil
}

// Seed creates the table when needed and upserts the given tags in order.
func (s *Storage) Seed(ctx context.Context, tags []domain.Tag) error {
	if _, err := s.tagTable.CreateTable(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return err
		}
	}
	for i, tag := range tags {
		ent := map[string]any{
			"PartitionKey": tagPartition,
			"RowKey":       tag.Value,
			"Label":        tag.Label,
			"Order":        i,
		}
		data, err := sonic.Marshal(ent)
		if err != nil {
			return err
		}
		if _, err := s.tagTable.UpsertEntity(ctx, data, nil); err != nil {
			return err
		}
	}
	return nil
}

func decodeTagEntity(data []byte) (tagEntity, error) {
	var ent tagEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return tagEntity{}, err
	}
	return ent, nil
}

func tagsFromEntities(ents []tagEntity) []domain.Tag {
	sort.SliceStable(ents, func(i, j int) bool {
		if ents[i].Order != ents[j].Order {
			return ents[i].Order < ents[j].Order
		}
		return ents[i].RowKey < ents[j].RowKey
	})
	tags := make([]domain.Tag, 0, len(ents))
	for _, e := range ents {
		label := e.Label
		if label == "" {
			label = e.RowKey
		}
		tags = append(tags, domain.Tag{Value: e.RowKey, Label: label})
	}
	return tags
}
