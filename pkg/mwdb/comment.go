package mwdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Comment is a comment attached to an object.
type Comment struct {
	ID        int64
	Author    string
	Timestamp time.Time
	Text      string

	object *Object
}

func (c *Comment) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID        int64  `json:"id"`
		Author    string `json:"author"`
		Timestamp string `json:"timestamp"`
		Comment   string `json:"comment"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err //nolint: wrapcheck
	}

	ts, err := parseTime(raw.Timestamp)
	if err != nil {
		return err
	}
	*c = Comment{ID: raw.ID, Author: raw.Author, Timestamp: ts, Text: raw.Comment}

	return nil
}

// Delete removes the comment.
func (c *Comment) Delete(ctx context.Context) error {
	path := c.object.objectPath("comment", strconv.FormatInt(c.ID, 10))
	if err := c.object.client.api.Delete(ctx, path, nil); err != nil {
		return fmt.Errorf("could not delete comment %d: %w", c.ID, err)
	}
	c.object.expire("comments")

	return nil
}

// Share tells that an object is accessible to a group.
type Share struct {
	Group     string
	Timestamp time.Time
	Reason    ShareReason

	object *Object
}

// ShareReason tells why an object was shared: what happened (Why) to which
// object (What), caused by whom (Who).
type ShareReason struct {
	Why        string
	Who        string
	ObjectID   string
	ObjectKind Kind

	client *Client
}

func (s *Share) UnmarshalJSON(b []byte) error {
	var raw struct {
		AccessTime         string `json:"access_time"`
		GroupName          string `json:"group_name"`
		ReasonType         string `json:"reason_type"`
		RelatedObjectDhash string `json:"related_object_dhash"`
		RelatedObjectType  string `json:"related_object_type"`
		RelatedUserLogin   string `json:"related_user_login"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err //nolint: wrapcheck
	}

	ts, err := parseTime(raw.AccessTime)
	if err != nil {
		return err
	}
	*s = Share{
		Group:     raw.GroupName,
		Timestamp: ts,
		Reason: ShareReason{
			Why:        raw.ReasonType,
			Who:        raw.RelatedUserLogin,
			ObjectID:   raw.RelatedObjectDhash,
			ObjectKind: Kind(raw.RelatedObjectType),
		},
	}

	return nil
}

// What returns the object whose upload, query or share caused the access.
func (r ShareReason) What() *Object {
	return objectWithID(r.client, r.ObjectKind, r.ObjectID)
}

func (r ShareReason) String() string {
	return fmt.Sprintf("%s %s:%s by %s", r.Why, r.ObjectKind, r.ObjectID, r.Who)
}
