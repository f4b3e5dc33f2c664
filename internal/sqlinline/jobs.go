package sqlinline

const QInsertJob = `--sql 7c1f38aa-94d2-4c6e-8b1a-3f2e0c6a9d41
insert into generation_jobs (id, status, progress, params_json)
values ($1, 'pending', 0, $2);
`

const QSelectJob = `--sql 1a6b02cd-57e8-41f3-9c4d-88a1b2e3f406
select id, status, progress, site_url, subdomain, domain_id, error_message, params_json, created_at, updated_at
from generation_jobs
where id = $1;
`

const QUpdateJobStatus = `--sql 9e4d71b2-0c3f-4a58-b6e9-52d7c8f0a113
update generation_jobs
set status = $2,
    error_message = coalesce($3, error_message),
    updated_at = now()
where id = $1
  and status in ('pending', 'processing')
returning id;
`

const QUpdateJobProgress = `--sql 3b8a54ef-6d29-4f07-a1c5-e94b0d2c7f68
update generation_jobs
set status = 'processing',
    progress = $2,
    updated_at = now()
where id = $1
  and status in ('pending', 'processing')
returning status;
`

const QCompleteJob = `--sql f2d90a47-81b5-4e6c-93f0-7a5c1e8b4d29
update generation_jobs
set status = 'complete',
    progress = 100,
    site_url = $2,
    subdomain = $3,
    domain_id = $4,
    updated_at = now()
where id = $1
  and status in ('pending', 'processing')
returning id;
`

const QClaimJob = `--sql 5e07c3d8-2a91-4b64-8f3e-d61a9c0b5724
with next_job as (
    select id
    from generation_jobs
    where status = 'pending'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update generation_jobs
    set status = 'processing', updated_at = now()
    where id in (select id from next_job)
    returning id, params_json
)
select * from updated;
`
